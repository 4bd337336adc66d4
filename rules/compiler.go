package rules

import (
	"fmt"

	"github.com/nstehr/hive/hive-core/config"
)

// CompileTasks builds the mobile unit's task-transition rules from the
// threshold table. All rules share one exclusive category, so the highest
// priority match decides the task. Conditions are built via fmt.Sprintf with
// interpolated integers; the compiler never generates invalid expr.
func CompileTasks(c config.Tasks) []*Rule {
	task := func(name string, prio int, cond string, t Task) *Rule {
		return &Rule{
			Name:         name,
			Priority:     prio,
			Category:     "task",
			Exclusive:    true,
			ConditionSrc: cond,
			Action:       setTask(t),
		}
	}
	return []*Rule{
		task("assemble", 1100, `AssembleRequested`, Assembling),
		task("carrying-unit", 1000, `CarryingUnit`, Returning),
		task("leader-distress", 900,
			fmt.Sprintf(`LeaderDistress && DistressDistSq <= %d`, c.DistressRangeSq), Returning),
		task("symmetry-news", 800, `SymmetryNews && HasHome()`, Returning),
		task("carry-full", 700,
			fmt.Sprintf(`HasHome() && (Carried >= %d || (Carried >= %d && NearHome(%d)))`,
				c.ReturnCarry, c.ReturnCarryNearHome, c.NearHomeDistSq), Returning),
		task("critical-reserve", 600,
			fmt.Sprintf(`HasHome() && TeamCheese < %d && Carried > 0`, c.CriticalReserve), Returning),
		task("hunt-leader", 500, `KnowsEnemyLeader`, SeekingObjective),
		task("visible-cheese", 400,
			fmt.Sprintf(`VisibleCheese && Carried < %d`, c.CarryCap), Collecting),
		task("known-mine", 300,
			fmt.Sprintf(`KnownMines > 0 && Carried < %d`, c.CarryCap), Collecting),
		task("spawn-search", 200, `UnvisitedSpawns > 0`, SeekingObjective),
		task("explore", 100, `true`, Exploring),
	}
}

// CompileLeader builds the leader's directive rules. Thresholds scale with
// the number of live leaders and tighten near the population cutoff.
func CompileLeader(c config.Leader) []*Rule {
	expand := fmt.Sprintf(`Leaders < MaxLeaders && Population >= Scaled(%d) && TeamCheese >= Scaled(%d) && KnownMines >= Scaled(%d)`,
		c.AssemblePopulation, c.AssembleCheese, c.AssembleMines)

	return []*Rule{
		{
			Name:         "distress",
			Priority:     1000,
			Category:     "defense",
			Exclusive:    true,
			ConditionSrc: `NearbyEnemies > 0`,
			Action:       func(_ Env, out *Outcome) { out.Distress = true },
		},
		{
			Name:         "abandon-assembly",
			Priority:     900,
			Category:     "expansion",
			Exclusive:    true,
			ConditionSrc: fmt.Sprintf(`AssemblePending && (!(%s) || AssembleAge > %d)`, expand, c.AssembleTimeout),
			Action:       func(_ Env, out *Outcome) { out.ClearAssembly = true },
		},
		{
			Name:         "request-assembly",
			Priority:     850,
			Category:     "expansion",
			Exclusive:    true,
			ConditionSrc: `!AssemblePending && ` + expand,
			Action:       func(_ Env, out *Outcome) { out.RequestAssembly = true },
		},
		{
			Name:         "spawn",
			Priority:     800,
			Category:     "economy",
			Exclusive:    true,
			ConditionSrc: fmt.Sprintf(`CanSpawn && TeamCheese >= SpawnCost + Scaled(%d) && Population < Quota(%d)`, c.SpawnReserve, c.SpawnPerLeader),
			Action:       func(_ Env, out *Outcome) { out.Spawn = true },
		},
	}
}
