// Package nav is the per-unit bug navigator: greedy steps toward the target
// until blocked, then wall-following with a committed rotation until the
// straight line opens up again. A target that keeps defeating the wall
// follower is reached by a breadth-first route over the known grid.
package nav

import (
	"slices"

	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/model"
)

// Grid is the navigator's view of the map for one round.
type Grid interface {
	OnMap(l model.Loc) bool
	// Passable reports whether a unit can step onto l right now.
	Passable(l model.Loc) bool
	// Diggable reports whether l holds an obstruction the unit can afford to remove.
	Diggable(l model.Loc) bool
}

// Step is one navigation decision.
type Step struct {
	Dir model.Direction
	Dig bool // remove the obstruction in Dir before moving
}

// Stay is the zero-move step.
var Stay = Step{Dir: model.Center}

// Rotation is the wall-following commitment.
type Rotation int

const (
	Uncommitted Rotation = iota
	Clockwise
	CounterClockwise
)

func (r Rotation) String() string {
	switch r {
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	}
	return "none"
}

func (r Rotation) turn(d model.Direction) model.Direction {
	if r == CounterClockwise {
		return d.RotateLeft()
	}
	return d.RotateRight()
}

func (r Rotation) flip() Rotation {
	switch r {
	case Clockwise:
		return CounterClockwise
	case CounterClockwise:
		return Clockwise
	}
	return Uncommitted
}

// Mode is the navigator's state.
type Mode int

const (
	Greedy Mode = iota
	WallFollowing
	Routed
)

func (m Mode) String() string {
	switch m {
	case WallFollowing:
		return "wall-following"
	case Routed:
		return "routed"
	}
	return "greedy"
}

const (
	// routeAfter is how many side flips a target may cost before the
	// navigator plans a route instead.
	routeAfter  = 3
	maxPatience = 1 << 12
)

// Navigator keeps the memory a unit carries between rounds while travelling to
// one target.
type Navigator struct {
	cfg config.Nav

	target    model.Loc
	hasTarget bool

	mode     Mode
	rotation Rotation
	obstacle model.Loc
	best     int // best squared distance reached since the last reset
	stall    int
	patience int // stall allowance, doubled on every stall flip
	flips    int
	route    []model.Loc
	attempt  int
	seen     map[model.Loc]signature

	// Resets counts hard resets, loops and stalls included.
	Resets int
}

type signature struct {
	attempt  int
	obstacle model.Loc
	rotation Rotation
}

func New(cfg config.Nav) *Navigator {
	return &Navigator{cfg: cfg, obstacle: model.NoLoc, seen: make(map[model.Loc]signature)}
}

func (n *Navigator) Mode() Mode          { return n.mode }
func (n *Navigator) Rotation() Rotation  { return n.rotation }
func (n *Navigator) Target() model.Loc   { return n.target }
func (n *Navigator) Obstacle() model.Loc { return n.obstacle }
func (n *Navigator) BestDistSq() int     { return n.best }

// Reset forgets everything about the current path.
func (n *Navigator) Reset(from model.Loc) {
	n.attempt++
	n.Resets++
	n.mode = Greedy
	n.rotation = Uncommitted
	n.obstacle = model.NoLoc
	n.stall = 0
	clear(n.seen)
	if n.hasTarget {
		n.best = from.DistSq(n.target)
	}
}

// retarget applies the target-change policy: a distant change is a hard
// reset, a small one keeps the rotation and resynchronises the best distance.
func (n *Navigator) retarget(from, target model.Loc) {
	switch {
	case !n.hasTarget:
		n.target, n.hasTarget = target, true
		n.fresh()
		n.Reset(from)
	case target.DistSq(n.target) > n.cfg.ResetDistSq:
		n.target = target
		n.fresh()
		n.Reset(from)
	case target != n.target:
		n.target = target
		n.best = from.DistSq(target)
		n.stall = 0
		n.route = nil
	}
}

// fresh drops what the navigator learned about the previous target.
func (n *Navigator) fresh() {
	n.patience = max(n.cfg.MaxStall, 1)
	n.flips = 0
	n.route = nil
}

// flip restarts on the other side of the obstacle.
func (n *Navigator) flip(from model.Loc) {
	flipped := n.rotation.flip()
	n.Reset(from)
	n.rotation = flipped
	n.flips++
}

// Next returns the step to take from `from` toward target. An invalid target
// means stay in place.
func (n *Navigator) Next(from, target model.Loc, g Grid) Step {
	if !target.Valid() {
		target = from
	}
	n.retarget(from, target)
	if from == target {
		return Stay
	}

	if n.mode != Routed && n.flips >= routeAfter {
		if n.plan(from, g) {
			n.mode = Routed
		} else {
			n.flips = 0
		}
	}
	if n.mode == Routed {
		return n.routed(from, g)
	}

	if n.mode == WallFollowing {
		if s, ok := n.greedy(from, g, true); ok {
			n.mode = Greedy
			n.obstacle = model.NoLoc
			return n.took(from, s)
		}
		if n.looped(from) {
			n.flip(from)
		} else {
			return n.follow(from, g)
		}
	}

	if s, ok := n.greedy(from, g, false); ok {
		return n.took(from, s)
	}

	// Blocked: start circumnavigating.
	blocked := from.DirTo(n.target)
	n.mode = WallFollowing
	n.obstacle = from.Add(blocked)
	n.best = min(n.best, from.DistSq(n.target))
	if n.rotation == Uncommitted {
		n.rotation = n.probe(from, blocked, g)
	}
	n.looped(from)
	return n.follow(from, g)
}

// greedy tries the direct direction and its two neighbours, nearer neighbour
// first. When strict is set the step must also beat the best distance so far,
// which is the condition for leaving a wall.
func (n *Navigator) greedy(from model.Loc, g Grid, strict bool) (Step, bool) {
	d := from.DirTo(n.target)
	l, r := d.RotateLeft(), d.RotateRight()
	if from.Add(r).DistSq(n.target) < from.Add(l).DistSq(n.target) {
		l, r = r, l
	}
	cur := from.DistSq(n.target)
	for _, c := range [3]model.Direction{d, l, r} {
		next := from.Add(c)
		dist := next.DistSq(n.target)
		if dist >= cur || (strict && dist >= n.best) {
			continue
		}
		if s, ok := stepInto(from, c, g); ok {
			return s, true
		}
	}
	return Stay, false
}

// probe looks up to ProbeSteps rotations each way from the blocked direction
// and commits to the side whose first open cell is nearer the target.
func (n *Navigator) probe(from model.Loc, blocked model.Direction, g Grid) Rotation {
	steps := min(max(n.cfg.ProbeSteps, 1), 8)
	first := func(r Rotation) (int, bool) {
		d := blocked
		for i := 0; i < steps; i++ {
			d = r.turn(d)
			if _, ok := stepInto(from, d, g); ok {
				return from.Add(d).DistSq(n.target), true
			}
		}
		return 0, false
	}
	cw, okCW := first(Clockwise)
	ccw, okCCW := first(CounterClockwise)
	switch {
	case okCW && okCCW && ccw < cw:
		return CounterClockwise
	case !okCW && okCCW:
		return CounterClockwise
	}
	return Clockwise
}

// follow keeps the obstacle on one side: starting from the direction of the
// last contact point, rotate until a direction opens.
func (n *Navigator) follow(from model.Loc, g Grid) Step {
	d := from.DirTo(n.obstacle)
	if d == model.Center {
		d = from.DirTo(n.target)
	}
	for i := 0; i < 8; i++ {
		if s, ok := stepInto(from, d, g); ok {
			n.stall++
			if n.stall > n.patience {
				// Try the other side next time, and give it longer.
				n.patience = min(n.patience*2, maxPatience)
				n.flip(from)
				return Stay
			}
			return n.took(from, s)
		}
		n.obstacle = from.Add(d)
		d = n.rotation.turn(d)
	}
	// Boxed in on every side.
	n.Reset(from)
	return Stay
}

// routed follows the planned route, replanning when the unit has left it or
// the next cell has closed. With no route left it falls back to greedy.
func (n *Navigator) routed(from model.Loc, g Grid) Step {
	if len(n.route) > 0 && n.route[0] == from {
		n.route = n.route[1:]
	}
	for attempt := 0; attempt < 2; attempt++ {
		if len(n.route) > 0 && from.Chebyshev(n.route[0]) == 1 {
			if s, ok := stepInto(from, from.DirTo(n.route[0]), g); ok {
				return n.took(from, s)
			}
		}
		if !n.plan(from, g) {
			break
		}
	}
	n.Reset(from)
	n.flips = 0
	n.route = nil
	return Stay
}

// plan finds the shortest 8-way route from `from` to the target through
// passable or diggable cells. The route excludes from itself.
func (n *Navigator) plan(from model.Loc, g Grid) bool {
	prev := map[model.Loc]model.Loc{from: from}
	queue := []model.Loc{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == n.target {
			var route []model.Loc
			for l := cur; l != from; l = prev[l] {
				route = append(route, l)
			}
			slices.Reverse(route)
			n.route = route
			return true
		}
		for _, d := range model.Candidates[:8] {
			next := cur.Add(d)
			if _, seen := prev[next]; seen {
				continue
			}
			if _, ok := stepInto(cur, d, g); !ok {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	n.route = nil
	return false
}

func (n *Navigator) took(from model.Loc, s Step) Step {
	if d := from.Add(s.Dir).DistSq(n.target); d < n.best {
		n.best = d
		n.stall = 0
	}
	return s
}

// looped records the wall-following signature for from and reports whether
// the identical signature was already there.
func (n *Navigator) looped(from model.Loc) bool {
	sig := signature{attempt: n.attempt, obstacle: n.obstacle, rotation: n.rotation}
	if prev, ok := n.seen[from]; ok && prev == sig {
		return true
	}
	n.seen[from] = sig
	return false
}

func stepInto(from model.Loc, d model.Direction, g Grid) (Step, bool) {
	l := from.Add(d)
	if !g.OnMap(l) {
		return Stay, false
	}
	if g.Passable(l) {
		return Step{Dir: d}, true
	}
	if g.Diggable(l) {
		return Step{Dir: d, Dig: true}, true
	}
	return Stay, false
}
