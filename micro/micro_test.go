package micro

import (
	"testing"

	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

func snapshot(self model.Loc) Snapshot {
	return Snapshot{
		Round:       50,
		Self:        model.UnitInfo{ID: 1, Team: model.TeamA, Type: model.Rat, Loc: self, Facing: model.North, Health: 100},
		Terrain:     world.New(20, 20),
		TeamCheese:  500,
		DigCost:     10,
		BaseDamage:  10,
		ThrowRange:  4,
		ActionReady: true,
		Destination: model.NoLoc,
	}
}

func index(d model.Direction) int {
	for i, c := range model.Candidates {
		if c == d {
			return i
		}
	}
	return -1
}

func TestStayAtDestination(t *testing.T) {
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.Destination = model.Loc{X: 5, Y: 5}
	ev := Evaluate(s, config.Default().Scoring)
	if ev.Direction() != model.Center {
		t.Errorf("best = %v (scores %v), want stay", ev.Direction(), ev.Scores)
	}
}

func TestMovesTowardDestination(t *testing.T) {
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.Destination = model.Loc{X: 5, Y: 15}
	if d := Evaluate(s, config.Default().Scoring).Direction(); d != model.North {
		t.Errorf("best = %v, want N", d)
	}
}

func TestHazardPenaltyRings(t *testing.T) {
	w := config.Default().Scoring
	cat := model.UnitInfo{ID: 9, Team: model.Neutral, Type: model.Cat, Loc: model.Loc{X: 10, Y: 10}, Facing: model.South}

	tests := []struct {
		cell model.Loc
		want int
	}{
		{model.Loc{X: 10, Y: 9}, w.HazardNear},
		{model.Loc{X: 11, Y: 11}, w.HazardAdjacent},
		{model.Loc{X: 10, Y: 7}, 0},
	}
	for _, tc := range tests {
		if got := HazardPenalty(cat, tc.cell, w); got != tc.want {
			t.Errorf("HazardPenalty(%v) = %d, want %d", tc.cell, got, tc.want)
		}
	}

	// Not looking: halved.
	cat.Facing = model.North
	if got := HazardPenalty(cat, model.Loc{X: 10, Y: 9}, w); got != w.HazardNear/2 {
		t.Errorf("HazardPenalty outside cone = %d, want %d", got, w.HazardNear/2)
	}
}

func TestHazardMemoryDecays(t *testing.T) {
	w := config.Default().Scoring
	s := snapshot(model.Loc{X: 5, Y: 5})
	c := model.Loc{X: 6, Y: 5}
	s.HazardMemory = []Sighting{{Loc: model.Loc{X: 7, Y: 5}, Round: s.Round - 1}}
	fresh := s.fallbackPenalty(c, w)
	s.HazardMemory[0].Round = s.Round - 6
	old := s.fallbackPenalty(c, w)
	s.HazardMemory[0].Round = s.Round - w.HazardMemoryRounds
	gone := s.fallbackPenalty(c, w)
	if !(fresh > old && old > 0 && gone == 0) {
		t.Errorf("fallback penalties fresh=%d old=%d gone=%d, want decaying to zero", fresh, old, gone)
	}
}

func TestDeterministic(t *testing.T) {
	s := snapshot(model.Loc{X: 8, Y: 8})
	s.Destination = model.Loc{X: 2, Y: 14}
	s.Enemies = []model.UnitInfo{{ID: 5, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 10, Y: 9}, Health: 120}}
	s.Allies = []model.UnitInfo{{ID: 2, Team: model.TeamA, Type: model.Rat, Loc: model.Loc{X: 7, Y: 7}, Health: 100}}
	s.Hazards = []model.UnitInfo{{ID: 9, Team: model.Neutral, Type: model.Cat, Loc: model.Loc{X: 5, Y: 10}, Facing: model.East}}
	w := config.Default().Scoring
	first := Evaluate(s, w)
	for i := 0; i < 10; i++ {
		if ev := Evaluate(s, w); ev != first {
			t.Fatalf("evaluation %d differs: %+v vs %+v", i, ev, first)
		}
	}
}

func TestInfeasibleDominates(t *testing.T) {
	m := world.New(20, 20)
	m.Observe([]model.TileInfo{{Loc: model.Loc{X: 6, Y: 5}, Kind: model.Wall}})
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.Terrain = m
	s.Destination = model.Loc{X: 6, Y: 5}
	s.Enemies = []model.UnitInfo{{ID: 7, Team: model.TeamB, Type: model.King, Loc: model.Loc{X: 8, Y: 5}, Health: 500}}

	w := config.Default().Scoring
	w.KingMelee, w.AttackKingBonus, w.KingRing = 1_000_000, 1_000_000, 1_000_000
	ev := Evaluate(s, w)
	east := index(model.East)
	if !ev.Impassable[east] || ev.Scores[east] != Infeasible {
		t.Fatalf("east should be infeasible, got %d", ev.Scores[east])
	}
	if ev.Direction() == model.East {
		t.Error("infeasible candidate won")
	}
	for i, sc := range ev.Scores {
		if !ev.Impassable[i] && sc <= Infeasible {
			t.Errorf("feasible candidate %v scored at the sentinel", model.Candidates[i])
		}
	}
}

func TestOffMapAndOccupied(t *testing.T) {
	s := snapshot(model.Loc{X: 0, Y: 0})
	s.Allies = []model.UnitInfo{{ID: 2, Team: model.TeamA, Type: model.Rat, Loc: model.Loc{X: 1, Y: 1}}}
	ev := Evaluate(s, config.Default().Scoring)
	for _, d := range []model.Direction{model.South, model.West, model.SouthWest, model.NorthWest, model.SouthEast, model.NorthEast} {
		if !ev.Impassable[index(d)] {
			t.Errorf("%v should be impassable", d)
		}
	}
	if ev.Impassable[index(model.North)] || ev.Impassable[index(model.East)] {
		t.Error("open neighbours marked impassable")
	}
}

func TestDirtNeedsCheese(t *testing.T) {
	m := world.New(20, 20)
	m.Observe([]model.TileInfo{{Loc: model.Loc{X: 5, Y: 6}, Kind: model.Dirt}})
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.Terrain = m
	w := config.Default().Scoring

	ev := Evaluate(s, w)
	if n := index(model.North); ev.Impassable[n] || !ev.Dig[n] {
		t.Errorf("dirt with cheese should be a dig move")
	}
	s.TeamCheese = 0
	ev = Evaluate(s, w)
	if !ev.Impassable[index(model.North)] {
		t.Error("dirt without cheese should be impassable")
	}
}

func TestDistressInvertsDanger(t *testing.T) {
	w := config.Default().Scoring
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.ActionReady = false
	s.Enemies = []model.UnitInfo{{ID: 5, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 7, Y: 5}, Health: 100}}
	c := model.Loc{X: 6, Y: 5}
	calm := s.enemyTerms(c, w)
	s.LeaderDistress = true
	rally := s.enemyTerms(c, w)
	if calm != -w.EnemyAdjacent || rally != w.EnemyAdjacent {
		t.Errorf("calm=%d rally=%d, want ∓%d", calm, rally, w.EnemyAdjacent)
	}

	s.Enemies[0].ThrownRound = s.Round - 1
	if got := s.enemyTerms(c, w); got != w.ThrownGrace {
		t.Errorf("recent thrower = %d, want grace %d", got, w.ThrownGrace)
	}
}

func TestOpportunityPrecedence(t *testing.T) {
	w := config.Default().Scoring
	s := snapshot(model.Loc{X: 5, Y: 5})
	c := model.Loc{X: 6, Y: 5}
	weak := model.UnitInfo{ID: 5, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 7, Y: 5}, Facing: model.East, Health: 8}
	s.Enemies = []model.UnitInfo{weak}
	if got := s.opportunity(c, true, w); got != w.RatnapBonus {
		t.Errorf("opportunity = %d, want ratnap bonus", got)
	}
	s.Enemies[0].Facing = model.West // looking at c
	if got := s.opportunity(c, true, w); got != w.AttackKingBonus {
		t.Errorf("opportunity = %d, want king bonus", got)
	}
	if got := s.opportunity(c, false, w); got != w.FinishBonus {
		t.Errorf("opportunity = %d, want finish bonus", got)
	}
	s.Enemies[0].Health = 90
	if got := s.opportunity(c, false, w); got != w.ReadyToAttack {
		t.Errorf("opportunity = %d, want ready bonus", got)
	}
}

func TestPickRatnap(t *testing.T) {
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.Enemies = []model.UnitInfo{
		{ID: 5, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 4, Y: 5}, Facing: model.East, Health: 40}, // facing us
		{ID: 6, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 6, Y: 5}, Facing: model.East, Health: 50},
		{ID: 7, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 5, Y: 6}, Facing: model.North, Health: 150}, // stronger
	}
	got, ok := PickRatnap(s)
	if !ok || got.ID != 6 {
		t.Errorf("PickRatnap = %d, %v, want 6", got.ID, ok)
	}
	s.Self.CarryingID = 6
	if _, ok := PickRatnap(s); ok {
		t.Error("cannot grab while carrying")
	}
}

func TestPickThrow(t *testing.T) {
	m := world.New(20, 20)
	m.Observe([]model.TileInfo{{Loc: model.Loc{X: 7, Y: 5}, Kind: model.Wall}})
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.Terrain = m
	s.Self.Facing = model.East
	s.Self.CarryingID = 99
	s.Allies = []model.UnitInfo{{ID: 2, Team: model.TeamA, Type: model.Rat, Loc: model.Loc{X: 8, Y: 2}}}

	th, ok := PickThrow(s)
	if !ok || th.Dir != model.NorthEast || th.Flight != 4 {
		t.Errorf("PickThrow = %+v, %v, want NE flight 4", th, ok)
	}

	// A teammate beyond the landing cell still vetoes the line.
	s.Allies = append(s.Allies, model.UnitInfo{ID: 3, Team: model.TeamA, Type: model.Rat, Loc: model.Loc{X: 9, Y: 9}})
	th, ok = PickThrow(s)
	if !ok || th.Dir != model.East || th.Flight != 1 {
		t.Errorf("PickThrow = %+v, %v, want E flight 1", th, ok)
	}
}

func TestPickAttack(t *testing.T) {
	w := config.Default().Scoring
	s := snapshot(model.Loc{X: 5, Y: 5})
	s.Enemies = []model.UnitInfo{
		{ID: 5, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 6, Y: 5}, Health: 100},
		{ID: 6, Team: model.TeamB, Type: model.King, Loc: model.Loc{X: 5, Y: 7}, Health: 500},
		{ID: 7, Team: model.TeamB, Type: model.Rat, Loc: model.Loc{X: 4, Y: 4}, Health: 8},
	}
	a, ok := PickAttack(s, w)
	if !ok || a.Target.ID != 7 || a.Cheese != 0 {
		t.Fatalf("PickAttack = %+v, want finishing blow on 7 for free", a)
	}
	s.Enemies = s.Enemies[:2]
	a, ok = PickAttack(s, w)
	if !ok || a.Target.ID != 6 || a.Cheese != MinCheese(w.KingHedgeExtra) {
		t.Errorf("PickAttack = %+v, want the leader with a king hedge", a)
	}
}

func TestExtraDamageInverse(t *testing.T) {
	for e := 1; e <= 20; e++ {
		c := MinCheese(e)
		if got := ExtraDamage(c); got != e {
			t.Errorf("ExtraDamage(MinCheese(%d)=%d) = %d", e, c, got)
		}
		if e > 1 && ExtraDamage(c-1) >= e {
			t.Errorf("MinCheese(%d) = %d is not minimal", e, c)
		}
	}
	if ExtraDamage(0) != 0 || MinCheese(0) != 0 {
		t.Error("zero spend should buy zero damage")
	}
}

func TestPlanSpend(t *testing.T) {
	w := config.Default().Scoring
	tests := []struct {
		name        string
		hp, reserve int
		vsKing      bool
		want        int
	}{
		{"cheap finish", 12, 500, false, 2},
		{"hedge rich", 100, 500, false, MinCheese(3)},
		{"hedge rich vs king", 100, 500, true, MinCheese(6)},
		{"hedge middling", 100, 200, false, MinCheese(2)},
		{"poor", 100, 50, false, 0},
		{"poor cheap finish", 12, 50, false, 2},
		{"no damage needed", 5, 500, false, 0},
	}
	for _, tc := range tests {
		if got := PlanSpend(tc.hp, 10, tc.reserve, tc.vsKing, w); got != tc.want {
			t.Errorf("%s: PlanSpend = %d, want %d", tc.name, got, tc.want)
		}
	}
}
