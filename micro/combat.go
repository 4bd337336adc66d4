package micro

import (
	"math"

	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/model"
)

// PickRatnap returns the weakest adjacent enemy rat the unit can grab.
func PickRatnap(s Snapshot) (model.UnitInfo, bool) {
	var best model.UnitInfo
	found := false
	if s.Self.CarryingID != 0 {
		return best, false
	}
	for _, e := range s.Enemies {
		if e.Type != model.Rat || e.Carried || e.CarryingID != 0 || !e.Loc.Adjacent(s.Self.Loc) || e.Loc == s.Self.Loc {
			continue
		}
		if !canRatnap(s.Self.Health, e, s.Self.Loc) {
			continue
		}
		if !found || e.Health < best.Health || (e.Health == best.Health && e.ID < best.ID) {
			best, found = e, true
		}
	}
	return best, found
}

// Throw is a chosen throw of the carried unit.
type Throw struct {
	Dir    model.Direction
	Flight int // cells travelled before the first obstacle
}

// PickThrow looks along the three forward directions and picks the line whose
// first wall, dirt or enemy is farthest away. A line with a teammate anywhere
// along it is never used.
func PickThrow(s Snapshot) (Throw, bool) {
	if s.Self.CarryingID == 0 || s.Self.Facing == model.Center {
		return Throw{}, false
	}
	allies := make(map[model.Loc]bool)
	for _, a := range s.Allies {
		if a.ID == s.Self.ID || a.ID == s.Self.CarryingID {
			continue
		}
		for _, b := range a.Body() {
			allies[b] = true
		}
	}
	enemies := make(map[model.Loc]bool)
	for _, group := range [][]model.UnitInfo{s.Enemies, s.Hazards} {
		for _, e := range group {
			if e.ID == s.Self.CarryingID {
				continue
			}
			for _, b := range e.Body() {
				enemies[b] = true
			}
		}
	}

	var best Throw
	found := false
	rng := max(s.ThrowRange, 1)
	for _, d := range s.Self.Facing.Cone() {
		flight, blocked := 0, false
		l := s.Self.Loc
		for step := 1; step <= rng; step++ {
			l = l.Add(d)
			if allies[l] {
				blocked = true
				break
			}
			if !s.Terrain.OnMap(l) || s.Terrain.Tile(l).Blocking() || enemies[l] {
				break
			}
			flight = step
		}
		// Keep scanning past the landing cell for teammates in the line of fire.
		for step := flight + 1; !blocked && step <= rng; step++ {
			l = s.Self.Loc.Offset(d.DX()*step, d.DY()*step)
			if allies[l] {
				blocked = true
			}
		}
		if blocked || flight == 0 {
			continue
		}
		if !found || flight > best.Flight {
			best = Throw{Dir: d, Flight: flight}
			found = true
		}
	}
	return best, found
}

// Attack is a chosen melee attack.
type Attack struct {
	Target model.UnitInfo
	Cheese int
}

// PickAttack chooses the adjacent enemy to hit: anything that can be finished
// this round first (lowest health), then an enemy leader, then the weakest rat.
func PickAttack(s Snapshot, w config.Scoring) (Attack, bool) {
	var (
		best     model.UnitInfo
		bestRank int
		found    bool
	)
	reserve := s.TeamCheese
	for _, e := range s.Enemies {
		if e.Carried || e.BodyDistance(s.Self.Loc) != 1 {
			continue
		}
		rank := 0
		switch {
		case e.Health <= s.BaseDamage+ExtraDamage(affordableFinish(reserve, w)):
			rank = 3
		case e.Type == model.King:
			rank = 2
		default:
			rank = 1
		}
		if !found || rank > bestRank || (rank == bestRank && (e.Health < best.Health || (e.Health == best.Health && e.ID < best.ID))) {
			best, bestRank, found = e, rank, true
		}
	}
	if !found {
		return Attack{}, false
	}
	vsKing := best.Type == model.King || s.Self.Type == model.King
	return Attack{Target: best, Cheese: PlanSpend(best.Health, s.BaseDamage, reserve, vsKing, w)}, true
}

// ExtraDamage is the bonus damage bought with spent cheese.
func ExtraDamage(spent int) int {
	if spent <= 0 {
		return 0
	}
	return int(math.Ceil(math.Sqrt(float64(spent))))
}

// MinCheese is the least cheese that buys extra damage e; the inverse of ExtraDamage.
func MinCheese(extra int) int {
	if extra <= 0 {
		return 0
	}
	return (extra-1)*(extra-1) + 1
}

// affordableFinish is the most the tiered policy would ever spend to finish a
// target with the given reserve.
func affordableFinish(reserve int, w config.Scoring) int {
	switch {
	case reserve < w.LowReserve:
		return reserve / 10
	case reserve < w.MidReserve:
		return reserve / 4
	}
	return reserve / 2
}

// PlanSpend picks how much cheese to add to an attack. A finishing blow is
// bought when it is cheap relative to the reserve; otherwise the spend hedges
// toward a small fixed extra damage, larger when a leader is involved, and
// nothing at all when the team is poor.
func PlanSpend(targetHealth, baseDamage, reserve int, vsKing bool, w config.Scoring) int {
	if reserve <= 0 {
		return 0
	}
	need := targetHealth - baseDamage
	if need <= 0 {
		return 0
	}
	if cost := MinCheese(need); cost <= affordableFinish(reserve, w) {
		return cost
	}
	if reserve < w.LowReserve {
		return 0
	}
	hedge := w.HedgeExtra
	if vsKing {
		hedge = w.KingHedgeExtra
	}
	if reserve < w.MidReserve {
		hedge = (hedge + 1) / 2
	}
	return min(MinCheese(hedge), reserve)
}
