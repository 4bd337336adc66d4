package rules

import (
	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/model"
)

// Destination is where a unit is heading. Exact destinations must be reached
// exactly; approximate ones are cleared as soon as they enter sensor range.
type Destination struct {
	Loc    model.Loc
	Exact  bool
	Reason string
}

// NoDestination means stay put.
var NoDestination = Destination{Loc: model.NoLoc}

func (d Destination) Valid() bool { return d.Loc.Valid() }

const (
	ReasonCheese      = "cheese"
	ReasonMine        = "mine"
	ReasonLeader      = "leader"
	ReasonEnemyLeader = "enemy-leader"
	ReasonSpawn       = "spawn"
	ReasonExplore     = "explore"
	ReasonAssembly    = "assembly"
	ReasonAssemblyRim = "assembly-rim"
)

// Knowledge is the slice of the unit's model the planner reads.
type Knowledge struct {
	Round          int
	Self           model.Loc
	VisionRadiusSq int

	VisibleCheese []model.Loc
	Mines         []model.Loc // registry mines outside cooldown
	Leaders       []model.Loc
	EnemyLeader   model.Loc

	// SpawnCandidates are the unvisited guesses at the enemy's first leader.
	// PreferredSpawn, when valid, is the one symmetry has confirmed.
	SpawnCandidates []model.Loc
	PreferredSpawn  model.Loc

	Assemble model.Loc

	// Free reports whether the unit could stand on l: on the map, not
	// blocked and not held by a teammate.
	Free func(l model.Loc) bool
	// Explore yields a fresh exploration target.
	Explore func() model.Loc
}

// Planner debounces destination selection: a destination is kept until it is
// reached, goes stale, or the task changes.
type Planner struct {
	cfg  config.Tasks
	task Task
	dest Destination

	assembly     model.Loc
	assemblyFrom int
	expired      model.Loc
	spawnTurn    int
}

func NewPlanner(cfg config.Tasks) *Planner {
	return &Planner{cfg: cfg, dest: NoDestination, assembly: model.NoLoc, expired: model.NoLoc}
}

func (p *Planner) Destination() Destination { return p.dest }

// Clear drops the current destination so the next Plan re-evaluates.
func (p *Planner) Clear() { p.dest = NoDestination }

// AssemblyExpired reports whether the assembly goal at l already timed out for
// this unit.
func (p *Planner) AssemblyExpired(l model.Loc) bool { return l.Valid() && l == p.expired }

// Plan returns the destination for task.
func (p *Planner) Plan(task Task, k Knowledge) Destination {
	if task != p.task {
		p.task = task
		p.dest = NoDestination
	}
	if task == Assembling {
		if d, ok := p.assemble(k); ok {
			p.dest = d
			return d
		}
		// Timed out; fall through to exploring for the rest of the round.
		task = Exploring
		p.dest = NoDestination
	}
	if p.dest.Valid() && !p.reached(k) && !p.stale(k) {
		return p.dest
	}
	p.dest = p.choose(task, k)
	return p.dest
}

func (p *Planner) reached(k Knowledge) bool {
	if p.dest.Exact {
		return k.Self == p.dest.Loc
	}
	return k.Self.DistSq(p.dest.Loc) <= k.VisionRadiusSq
}

// stale reports whether the information behind the destination is gone.
func (p *Planner) stale(k Knowledge) bool {
	l := p.dest.Loc
	switch p.dest.Reason {
	case ReasonCheese:
		return k.Self.DistSq(l) <= k.VisionRadiusSq && !contains(k.VisibleCheese, l)
	case ReasonMine:
		return !contains(k.Mines, l)
	case ReasonLeader:
		return !contains(k.Leaders, l)
	case ReasonEnemyLeader:
		return l != k.EnemyLeader
	case ReasonSpawn:
		return k.EnemyLeader.Valid() || !contains(k.SpawnCandidates, l)
	}
	return false
}

func (p *Planner) choose(task Task, k Knowledge) Destination {
	switch task {
	case Collecting:
		if l, ok := nearest(k.Self, k.VisibleCheese); ok {
			return Destination{Loc: l, Exact: true, Reason: ReasonCheese}
		}
		if l, ok := nearest(k.Self, k.Mines); ok {
			return Destination{Loc: l, Reason: ReasonMine}
		}
	case Returning:
		if l, ok := nearest(k.Self, k.Leaders); ok {
			return Destination{Loc: l, Reason: ReasonLeader}
		}
	case SeekingObjective:
		if k.EnemyLeader.Valid() {
			return Destination{Loc: k.EnemyLeader, Reason: ReasonEnemyLeader}
		}
		if l, ok := p.pickSpawn(k); ok {
			return Destination{Loc: l, Reason: ReasonSpawn}
		}
	}
	if k.Explore != nil {
		return Destination{Loc: k.Explore(), Reason: ReasonExplore}
	}
	return NoDestination
}

// pickSpawn prefers the symmetry-confirmed candidate and otherwise cycles
// through the remaining ones.
func (p *Planner) pickSpawn(k Knowledge) (model.Loc, bool) {
	if k.PreferredSpawn.Valid() && contains(k.SpawnCandidates, k.PreferredSpawn) {
		return k.PreferredSpawn, true
	}
	if len(k.SpawnCandidates) == 0 {
		return model.NoLoc, false
	}
	l := k.SpawnCandidates[p.spawnTurn%len(k.SpawnCandidates)]
	p.spawnTurn++
	return l, true
}

// assemble walks toward the assembly point, settling on a free neighbouring
// cell when a teammate already holds the point. It reports false once the
// goal has been pursued for longer than the assembly timeout.
func (p *Planner) assemble(k Knowledge) (Destination, bool) {
	a := k.Assemble
	if !a.Valid() {
		return NoDestination, false
	}
	if a != p.assembly {
		p.assembly = a
		p.assemblyFrom = k.Round
	}
	if k.Round-p.assemblyFrom > p.cfg.AssembleTimeout {
		p.expired = a
		return NoDestination, false
	}
	if k.Self == a || k.Free == nil || k.Free(a) {
		return Destination{Loc: a, Exact: true, Reason: ReasonAssembly}, true
	}
	if k.Self.Adjacent(a) {
		return Destination{Loc: k.Self, Exact: true, Reason: ReasonAssemblyRim}, true
	}
	best, bestD := model.NoLoc, 0
	for _, d := range model.Directions {
		l := a.Add(d)
		if !k.Free(l) {
			continue
		}
		if dd := k.Self.DistSq(l); !best.Valid() || dd < bestD {
			best, bestD = l, dd
		}
	}
	if !best.Valid() {
		// Ring is full; approach the point and wait for a cell to open.
		return Destination{Loc: a, Reason: ReasonAssembly}, true
	}
	return Destination{Loc: best, Exact: true, Reason: ReasonAssemblyRim}, true
}

func nearest(from model.Loc, locs []model.Loc) (model.Loc, bool) {
	best, bestD := model.NoLoc, 0
	for _, l := range locs {
		if d := from.DistSq(l); !best.Valid() || d < bestD {
			best, bestD = l, d
		}
	}
	return best, best.Valid()
}

func contains(locs []model.Loc, l model.Loc) bool {
	for _, o := range locs {
		if o == l {
			return true
		}
	}
	return false
}
