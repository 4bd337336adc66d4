package agent

import (
	"fmt"

	"github.com/nstehr/hive/hive-core/comms"
	"github.com/nstehr/hive/hive-core/host"
	"github.com/nstehr/hive/hive-core/micro"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/nav"
	"github.com/nstehr/hive/hive-core/rules"
	"github.com/nstehr/hive/hive-core/world"
)

// unitRound is the mobile unit's decide-and-act step. Movement is finished
// before any combat is attempted, so a budget cutoff loses the least.
func (c *Controller) unitRound(h host.Host, s *comms.Shared, round int) (Decision, error) {
	c.markSpawns()

	out := c.tasks.Evaluate(c.unitEnv(round))
	if out.Task != c.task {
		c.log.Debug("task changed", "round", round, "from", c.task, "to", out.Task, "rule", firstFired(out))
		if out.Task == rules.Returning {
			c.registry.ClearCooldowns()
		}
		c.task = out.Task
	}
	dest := c.planner.Plan(c.task, c.knowledge(round))

	d := Decision{Task: c.task, Loc: c.p.self.Loc, Dest: dest, Dir: model.Center}

	if c.task == rules.Assembling && c.p.self.Loc == c.assemble {
		promoted, err := c.tryPromote(h, s, round)
		if err != nil || promoted {
			d.Combat = "promote"
			return d, err
		}
	}

	if h.MovementReady() {
		target := dest.Loc
		if !target.Valid() {
			target = c.p.self.Loc
		}
		step := c.nav.Next(c.p.self.Loc, target, navGrid{world: c.world, canDig: c.p.teamCheese >= c.consts.DigCost})
		ev := micro.Evaluate(c.snapshot(h, round, c.p.self.Loc.Add(step.Dir)), c.cfg.Scoring)
		d.Dir, d.Score = ev.Direction(), ev.BestScore()
		if d.Dir != model.Center {
			moved, err := c.move(h, d.Dir, ev.Dig[ev.Best])
			if err != nil {
				return d, err
			}
			d.Dug = ev.Dig[ev.Best]
			if moved {
				d.Loc = c.p.self.Loc
				d.Refinements = c.refine(h, s, round, phaseAfterMove)
			}
		}
	}

	combat, err := c.fight(h, c.snapshot(h, round, model.NoLoc))
	if err != nil {
		return d, err
	}
	d.Combat = combat
	if err := c.trade(h); err != nil {
		return d, err
	}
	c.trackMine(dest, round)

	if c.symmetryNews {
		if _, dist, ok := c.home(); ok && dist <= c.consts.SqueakRadiusSq {
			c.squeak(comms.KindSymmetry, int(c.world.Symmetry()))
		}
	}
	return d, nil
}

func firstFired(out rules.Outcome) string {
	if len(out.Fired) == 0 {
		return ""
	}
	return out.Fired[0]
}

func (c *Controller) unitEnv(round int) rules.Env {
	_, homeD, _ := c.home()
	distressD, distress := c.distress()
	return rules.Env{
		Round:             round,
		Task:              c.task,
		AssembleRequested: c.assemble.Valid() && !c.planner.AssemblyExpired(c.assemble),
		CarryingUnit:      c.p.self.CarryingID != 0,
		Carried:           c.p.self.Cheese,
		LeaderDistress:    distress,
		DistressDistSq:    distressD,
		SymmetryNews:      c.symmetryNews,
		TeamCheese:        c.p.teamCheese,
		HomeDistSq:        homeD,
		KnowsEnemyLeader:  c.enemyLeader.Valid(),
		VisibleCheese:     len(c.p.cheese) > 0,
		KnownMines:        len(c.registry.Available(round)),
		UnvisitedSpawns:   len(c.spawnCandidates()),
	}
}

func (c *Controller) knowledge(round int) rules.Knowledge {
	return rules.Knowledge{
		Round:           round,
		Self:            c.p.self.Loc,
		VisionRadiusSq:  c.visionRadiusSq(),
		VisibleCheese:   c.p.cheese,
		Mines:           c.registry.Available(round),
		Leaders:         c.homes(),
		EnemyLeader:     c.enemyLeader,
		SpawnCandidates: c.spawnCandidates(),
		PreferredSpawn:  c.preferredSpawn(),
		Assemble:        c.assemble,
		Free:            c.free,
		Explore:         func() model.Loc { return c.exploreTarget(round) },
	}
}

// free reports whether the unit could stand on l this round.
func (c *Controller) free(l model.Loc) bool {
	if !c.world.OnMap(l) || c.world.Tile(l).Blocking() {
		return false
	}
	for _, a := range c.p.allies {
		if a.Carried {
			continue
		}
		for _, b := range a.Body() {
			if b == l {
				return false
			}
		}
	}
	return true
}

// exploreTarget uses fixed landmarks early in the game and the nearest
// unvisited block afterwards.
func (c *Controller) exploreTarget(round int) model.Loc {
	if round < c.cfg.Tasks.ExplorePhaseRound {
		return c.world.PickLandmark(c.homes(), c.cfg.Tasks.LandmarkExcludeRadiusSq, c.rng)
	}
	return c.world.PickFrontier(c.p.self.Loc, c.rng)
}

// navGrid adapts the private map to the navigator. Unknown tiles are
// optimistically passable; units are left to the move scorer.
type navGrid struct {
	world  *world.Map
	canDig bool
}

func (g navGrid) OnMap(l model.Loc) bool    { return g.world.OnMap(l) }
func (g navGrid) Passable(l model.Loc) bool { return g.world.OnMap(l) && !g.world.Tile(l).Blocking() }
func (g navGrid) Diggable(l model.Loc) bool { return g.canDig && g.world.Tile(l) == model.Dirt }

var _ nav.Grid = navGrid{}

func (c *Controller) snapshot(h host.Host, round int, dest model.Loc) micro.Snapshot {
	distressD, distress := c.distress()
	return micro.Snapshot{
		Round:          round,
		Self:           c.p.self,
		Terrain:        c.world,
		TeamCheese:     c.p.teamCheese,
		DigCost:        c.consts.DigCost,
		BaseDamage:     c.consts.BaseDamage,
		ThrowRange:     c.consts.ThrowRange,
		ActionReady:    h.ActionReady(),
		LeaderDistress: distress && distressD <= c.cfg.Tasks.DistressRangeSq,
		Allies:         c.p.allies,
		Enemies:        c.p.enemies,
		Hazards:        c.p.hazards,
		HazardMemory:   c.hazardMemory(round),
		Destination:    dest,
	}
}

// move digs if needed and steps in d. An infeasible step is not an error;
// the unit simply stays.
func (c *Controller) move(h host.Host, d model.Direction, dig bool) (bool, error) {
	to := c.p.self.Loc.Add(d)
	if dig {
		if !h.CanRemoveDirt(to) {
			return false, nil
		}
		if err := h.RemoveDirt(to); err != nil {
			return false, fmt.Errorf("remove dirt at %v: %w", to, err)
		}
		c.world.Observe([]model.TileInfo{{Loc: to, Kind: model.Empty}})
		c.p.teamCheese -= c.consts.DigCost
	}
	if !h.CanMove(d) {
		return false, nil
	}
	if err := h.Move(d); err != nil {
		return false, fmt.Errorf("move %v: %w", d, err)
	}
	c.p.self.Loc = to
	c.p.self.Facing = d
	return true, nil
}

// fight tries, in order, to grab a weaker enemy, throw the unit being carried
// and hit the best adjacent target.
func (c *Controller) fight(h host.Host, s micro.Snapshot) (string, error) {
	if !h.ActionReady() {
		return "", nil
	}
	if t, ok := micro.PickRatnap(s); ok && h.CanCarry(t.Loc) {
		if err := h.Carry(t.Loc); err != nil {
			return "", fmt.Errorf("carry %d: %w", t.ID, err)
		}
		c.log.Debug("ratnapped", "target", t.ID, "loc", t.Loc)
		return "ratnap", nil
	}
	if t, ok := micro.PickThrow(s); ok && h.CanThrow(t.Dir) {
		if err := h.Throw(t.Dir); err != nil {
			return "", fmt.Errorf("throw %v: %w", t.Dir, err)
		}
		return "throw", nil
	}
	if a, ok := micro.PickAttack(s, c.cfg.Scoring); ok {
		at := strikeCell(a.Target, s.Self.Loc)
		if h.CanAttack(at) {
			if err := h.Attack(at, a.Cheese); err != nil {
				return "", fmt.Errorf("attack %d: %w", a.Target.ID, err)
			}
			c.p.teamCheese -= a.Cheese
			return "attack", nil
		}
	}
	return "", nil
}

// strikeCell is the cell of target's body closest to from.
func strikeCell(target model.UnitInfo, from model.Loc) model.Loc {
	best, bestD := target.Loc, -1
	for _, b := range target.Body() {
		if d := from.DistSq(b); bestD < 0 || d < bestD {
			best, bestD = b, d
		}
	}
	return best
}

// trade delivers carried cheese to an adjacent leader, or picks up cheese
// within reach.
func (c *Controller) trade(h host.Host) error {
	if !h.ActionReady() {
		return nil
	}
	self := c.p.self
	if self.Cheese > 0 {
		for _, a := range c.p.allies {
			if a.Type != model.King || a.BodyDistance(self.Loc) > 1 {
				continue
			}
			if !h.CanTransferCheese(a.Loc, self.Cheese) {
				continue
			}
			if err := h.TransferCheese(a.Loc, self.Cheese); err != nil {
				return fmt.Errorf("transfer cheese: %w", err)
			}
			c.p.teamCheese += self.Cheese
			c.p.self.Cheese = 0
			return nil
		}
	}
	if self.Cheese >= c.cfg.Tasks.CarryCap {
		return nil
	}
	for _, d := range model.Candidates {
		l := self.Loc.Add(d)
		if c.world.CheeseAt(l) <= 0 || !h.CanPickUpCheese(l) {
			continue
		}
		if err := h.PickUpCheese(l); err != nil {
			return fmt.Errorf("pick up cheese at %v: %w", l, err)
		}
		return nil
	}
	return nil
}

// trackMine counts rounds spent at a registry mine with nothing to collect;
// enough of them cool the mine down so the planner looks elsewhere.
func (c *Controller) trackMine(dest rules.Destination, round int) {
	if dest.Reason != rules.ReasonMine || len(c.p.cheese) > 0 {
		return
	}
	if c.p.self.Loc.DistSq(dest.Loc) > c.visionRadiusSq() {
		return
	}
	code := c.codec.Encode(dest.Loc)
	if c.registry.RecordFailure(code, round, c.cfg.Tasks.MineFailLimit, c.cfg.Tasks.MineCooldownRounds) {
		c.log.Debug("mine cooled down", "mine", dest.Loc, "until", round+c.cfg.Tasks.MineCooldownRounds)
		c.planner.Clear()
	}
}

// tryPromote turns the unit into a leader at the assembly point when the site
// allows a leader's body and the host agrees.
func (c *Controller) tryPromote(h host.Host, s *comms.Shared, round int) (bool, error) {
	at := c.p.self.Loc
	if !c.promotionSite(at) || !h.CanBecomeLeader() {
		return false, nil
	}
	if err := h.BecomeLeader(); err != nil {
		return false, fmt.Errorf("become leader: %w", err)
	}
	c.squeak(comms.KindLeaderClaim, c.codec.Encode(at))
	if err := s.ClearAssemble(); err != nil {
		return true, err
	}
	c.assemble = model.NoLoc
	if err := c.promote(); err != nil {
		return true, err
	}
	if err := c.claimSlot(s); err != nil {
		return true, err
	}
	if c.slot >= 0 {
		if err := s.SetLeaderLoc(c.slot, at); err != nil {
			return true, err
		}
	}
	c.log.Info("promoted to leader", "round", round, "loc", at, "slot", c.slot)
	return true, nil
}

// promotionSite requires room for a leader's 3×3 body: off the map edge and
// no wall or dirt among the 8 neighbours.
func (c *Controller) promotionSite(l model.Loc) bool {
	if l.X < 1 || l.Y < 1 || l.X > c.world.W-2 || l.Y > c.world.H-2 {
		return false
	}
	for _, d := range model.Directions {
		if c.world.Tile(l.Add(d)).Blocking() {
			return false
		}
	}
	return true
}
