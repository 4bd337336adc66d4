// Package micro scores the nine per-round movement candidates and picks
// combat targets. Everything here is a pure function of a Snapshot and the
// scoring weights.
package micro

import (
	"math"

	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/model"
)

// Infeasible is the score of a candidate the unit cannot take. Feasible scores
// are clamped above it, so it never wins.
const Infeasible = math.MinInt32

// Terrain is the unit's private map.
type Terrain interface {
	OnMap(l model.Loc) bool
	Tile(l model.Loc) model.TileKind
	CheeseAt(l model.Loc) int
}

// Sighting is a hazard that has left sensor range.
type Sighting struct {
	Loc   model.Loc
	Round int
}

// Snapshot is the perception the scorer evaluates.
type Snapshot struct {
	Round      int
	Self       model.UnitInfo
	Terrain    Terrain
	TeamCheese int
	DigCost    int
	BaseDamage int
	ThrowRange int

	ActionReady    bool
	LeaderDistress bool // own leader is asking for help: danger terms turn into bonuses

	Allies  []model.UnitInfo
	Enemies []model.UnitInfo
	Hazards []model.UnitInfo
	// HazardMemory holds last-known positions of hazards no longer in view.
	HazardMemory []Sighting

	Destination model.Loc
}

// Evaluation is the scored candidate array, indexed like model.Candidates.
type Evaluation struct {
	Scores     [9]int
	Impassable [9]bool
	Dig        [9]bool
	Best       int
}

// Direction is the winning candidate.
func (e Evaluation) Direction() model.Direction { return model.Candidates[e.Best] }

// BestScore is the winning candidate's score.
func (e Evaluation) BestScore() int { return e.Scores[e.Best] }

// Evaluate scores every candidate and picks the first maximal one.
func Evaluate(s Snapshot, w config.Scoring) Evaluation {
	var ev Evaluation
	occupied := s.occupied()
	for i, d := range model.Candidates {
		c := s.Self.Loc.Add(d)
		if d != model.Center {
			switch {
			case !s.Terrain.OnMap(c), s.Terrain.Tile(c) == model.Wall, occupied[c]:
				ev.Impassable[i] = true
			case s.Terrain.Tile(c) == model.Dirt:
				if s.TeamCheese < s.DigCost {
					ev.Impassable[i] = true
				} else {
					ev.Dig[i] = true
				}
			}
		}
		if ev.Impassable[i] {
			ev.Scores[i] = Infeasible
			continue
		}
		ev.Scores[i] = max(s.score(c, d, ev.Dig[i], w), Infeasible+1)
	}
	for i := 1; i < len(ev.Scores); i++ {
		if ev.Scores[i] > ev.Scores[ev.Best] {
			ev.Best = i
		}
	}
	return ev
}

func (s Snapshot) occupied() map[model.Loc]bool {
	occ := make(map[model.Loc]bool)
	for _, group := range [][]model.UnitInfo{s.Allies, s.Enemies, s.Hazards} {
		for _, u := range group {
			if u.Carried || u.ID == s.Self.ID {
				continue
			}
			for _, b := range u.Body() {
				occ[b] = true
			}
		}
	}
	return occ
}

// score sums the independent terms for standing on c after taking d.
func (s Snapshot) score(c model.Loc, d model.Direction, dig bool, w config.Scoring) int {
	total := 0
	if dig {
		total -= w.DigPenalty
	}
	if d == model.Center {
		total -= w.StandStill
	} else if d != s.Self.Facing && !s.Self.Facing.InCone(d) {
		total -= w.TurnPenalty
	}

	for _, h := range s.Hazards {
		total -= HazardPenalty(h, c, w)
	}
	total -= s.fallbackPenalty(c, w)

	kingMelee := false
	for _, e := range s.Enemies {
		if e.Type != model.King {
			continue
		}
		switch e.BodyDistance(c) {
		case 1:
			total += w.KingMelee
			kingMelee = true
		case 2:
			total += w.KingRing
		}
	}

	total += s.enemyTerms(c, w)
	total += s.allyTerms(c, w)
	if s.ActionReady {
		total += s.opportunity(c, kingMelee, w)
	}

	if s.Destination.Valid() {
		total -= int(w.DestinationMultiplier * math.Sqrt(float64(c.DistSq(s.Destination))))
	}

	if w.UnvisitedTile != 0 || w.AdjacentCheese != 0 {
		unknown, cheese := 0, 0
		for _, n := range model.Directions {
			l := c.Add(n)
			if !s.Terrain.OnMap(l) {
				continue
			}
			if s.Terrain.Tile(l) == model.Unknown {
				unknown++
			}
			if s.Terrain.CheeseAt(l) > 0 {
				cheese++
			}
		}
		total += unknown*w.UnvisitedTile + cheese*w.AdjacentCheese
	}
	return total
}

// HazardPenalty is the danger of standing on c next to hazard h. Cells within
// HazardReach of the body pay the full adjacency penalty, the next ring pays
// the near penalty. Both halve when c is outside the hazard's facing cone.
func HazardPenalty(h model.UnitInfo, c model.Loc, w config.Scoring) int {
	bd := h.BodyDistance(c)
	var pen int
	switch {
	case bd <= w.HazardReach:
		pen = w.HazardAdjacent
	case bd == w.HazardReach+1:
		pen = w.HazardNear
	default:
		return 0
	}
	if bd > 0 && !h.Facing.InCone(h.Loc.DirTo(c)) {
		pen /= 2
	}
	return pen
}

func (s Snapshot) fallbackPenalty(c model.Loc, w config.Scoring) int {
	if w.HazardMemoryRounds <= 0 {
		return 0
	}
	total := 0
	for _, m := range s.HazardMemory {
		age := s.Round - m.Round
		if age < 0 || age >= w.HazardMemoryRounds {
			continue
		}
		ghost := model.UnitInfo{Type: model.Cat, Loc: m.Loc}
		if ghost.BodyDistance(c) <= w.HazardReach+1 {
			total += w.HazardFallback * (w.HazardMemoryRounds - age) / w.HazardMemoryRounds
		}
	}
	return total
}

// enemyTerms counts enemy rats around c. Units that just threw or displaced
// someone are spent for a moment and score ThrownGrace instead.
func (s Snapshot) enemyTerms(c model.Loc, w config.Scoring) int {
	adjacent, near, stronger, grace := 0, 0, 0, 0
	for _, e := range s.Enemies {
		if e.Type != model.Rat || e.Carried {
			continue
		}
		dist := e.Loc.Chebyshev(c)
		if dist > 2 {
			continue
		}
		if e.ThrownRound > 0 && s.Round-e.ThrownRound <= w.ThrownGraceRounds {
			grace++
			continue
		}
		if dist <= 1 {
			adjacent++
		} else {
			near++
		}
		if e.Health > s.Self.Health {
			stronger++
		}
	}
	danger := adjacent*w.EnemyAdjacent + near*w.EnemyNear + stronger*w.EnemyStronger
	if s.LeaderDistress {
		danger = -danger
	}
	return grace*w.ThrownGrace - danger
}

func (s Snapshot) allyTerms(c model.Loc, w config.Scoring) int {
	total := 0
	for _, a := range s.Allies {
		if a.ID == s.Self.ID || a.Carried {
			continue
		}
		switch a.BodyDistance(c) {
		case 1:
			total += w.AllyAdjacent
		case 2:
			total += w.AllyNear
		}
	}
	return total
}

// opportunity adds the single highest applicable combat bonus for c.
func (s Snapshot) opportunity(c model.Loc, kingMelee bool, w config.Scoring) int {
	ratnap, finish, ready := false, false, kingMelee
	for _, e := range s.Enemies {
		if e.Carried || e.Type != model.Rat || e.Loc.Chebyshev(c) != 1 {
			continue
		}
		ready = true
		if s.Self.CarryingID == 0 && canRatnap(s.Self.Health, e, c) {
			ratnap = true
		}
		if e.Health <= s.BaseDamage {
			finish = true
		}
	}
	switch {
	case ratnap:
		return w.RatnapBonus
	case kingMelee:
		return w.AttackKingBonus
	case finish:
		return w.FinishBonus
	case ready:
		return w.ReadyToAttack
	}
	return 0
}

// canRatnap reports whether a unit with health hp standing on from could grab e:
// e must be weaker and must not be facing from.
func canRatnap(hp int, e model.UnitInfo, from model.Loc) bool {
	return e.Health < hp && !e.Facing.InCone(e.Loc.DirTo(from))
}
