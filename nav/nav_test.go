package nav

import (
	"math/rand"
	"testing"

	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/model"
)

type testGrid struct {
	w, h  int
	walls map[model.Loc]bool
	dirt  map[model.Loc]bool
}

func newGrid(w, h int) *testGrid {
	return &testGrid{w: w, h: h, walls: map[model.Loc]bool{}, dirt: map[model.Loc]bool{}}
}

func (g *testGrid) OnMap(l model.Loc) bool    { return l.InBounds(g.w, g.h) }
func (g *testGrid) Passable(l model.Loc) bool { return !g.walls[l] && !g.dirt[l] }
func (g *testGrid) Diggable(l model.Loc) bool { return g.dirt[l] }

func (g *testGrid) wall(locs ...model.Loc) {
	for _, l := range locs {
		g.walls[l] = true
	}
}

func vline(x, y0, y1 int) []model.Loc {
	var out []model.Loc
	for y := y0; y <= y1; y++ {
		out = append(out, model.Loc{X: x, Y: y})
	}
	return out
}

func hline(y, x0, x1 int) []model.Loc {
	var out []model.Loc
	for x := x0; x <= x1; x++ {
		out = append(out, model.Loc{X: x, Y: y})
	}
	return out
}

// walk drives a navigator until it arrives or the step limit runs out and
// returns the number of rounds taken, or -1.
func walk(t *testing.T, g *testGrid, from, to model.Loc, limit int) int {
	t.Helper()
	n := New(config.Default().Nav)
	pos := from
	for round := 0; round < limit; round++ {
		s := n.Next(pos, to, g)
		if s.Dir == model.Center {
			if pos == to {
				return round
			}
			continue
		}
		if s.Dig {
			delete(g.dirt, pos.Add(s.Dir))
		}
		pos = pos.Add(s.Dir)
		if !g.OnMap(pos) || g.walls[pos] {
			t.Fatalf("round %d: stepped onto blocked cell %v", round, pos)
		}
	}
	return -1
}

func TestNavigationTerminates(t *testing.T) {
	cup := newGrid(20, 20)
	cup.wall(vline(12, 5, 14)...)
	cup.wall(hline(5, 6, 12)...)
	cup.wall(hline(14, 6, 12)...)

	wall := newGrid(20, 20)
	wall.wall(vline(10, 2, 17)...)

	tests := []struct {
		name     string
		grid     *testGrid
		from, to model.Loc
	}{
		{"open field", newGrid(20, 20), model.Loc{X: 2, Y: 2}, model.Loc{X: 17, Y: 15}},
		{"long wall", wall, model.Loc{X: 5, Y: 10}, model.Loc{X: 15, Y: 10}},
		{"inside cup", cup, model.Loc{X: 9, Y: 10}, model.Loc{X: 17, Y: 10}},
		{"into cup", cup, model.Loc{X: 17, Y: 10}, model.Loc{X: 9, Y: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rounds := walk(t, tt.grid, tt.from, tt.to, 200); rounds < 0 {
				t.Errorf("did not reach %v from %v", tt.to, tt.from)
			}
		})
	}
}

func TestArrivedStays(t *testing.T) {
	n := New(config.Default().Nav)
	g := newGrid(20, 20)
	at := model.Loc{X: 5, Y: 5}
	if s := n.Next(at, at, g); s != Stay {
		t.Errorf("Next at target = %+v, want Stay", s)
	}
	if s := n.Next(at, model.NoLoc, g); s != Stay {
		t.Errorf("Next with no target = %+v, want Stay", s)
	}
}

func TestDigThroughDirt(t *testing.T) {
	g := newGrid(10, 10)
	for y := 0; y < 10; y++ {
		g.dirt[model.Loc{X: 5, Y: y}] = true
	}
	n := New(config.Default().Nav)
	s := n.Next(model.Loc{X: 4, Y: 5}, model.Loc{X: 8, Y: 5}, g)
	if s.Dir != model.East || !s.Dig {
		t.Errorf("Next = %+v, want dig east", s)
	}
	if rounds := walk(t, g, model.Loc{X: 1, Y: 5}, model.Loc{X: 8, Y: 5}, 50); rounds != 7 {
		t.Errorf("rounds = %d, want 7", rounds)
	}
}

func TestTargetChangePolicy(t *testing.T) {
	g := newGrid(20, 20)
	g.wall(vline(10, 2, 17)...)
	n := New(config.Default().Nav)
	from := model.Loc{X: 9, Y: 10}
	n.Next(from, model.Loc{X: 15, Y: 10}, g)
	if n.Mode() != WallFollowing {
		t.Fatalf("mode = %v, want wall-following", n.Mode())
	}
	rot := n.Rotation()
	resets := n.Resets

	// A small move keeps the commitment.
	n.retarget(from, model.Loc{X: 15, Y: 11})
	if n.Resets != resets || n.Rotation() != rot {
		t.Errorf("small target change reset the navigator")
	}
	if n.BestDistSq() != from.DistSq(model.Loc{X: 15, Y: 11}) {
		t.Errorf("best = %d, want resynchronised", n.BestDistSq())
	}

	// A large move is a hard reset.
	n.retarget(from, model.Loc{X: 2, Y: 2})
	if n.Resets != resets+1 || n.Rotation() != Uncommitted || n.Mode() != Greedy {
		t.Errorf("large target change kept state: resets=%d rot=%v mode=%v", n.Resets, n.Rotation(), n.Mode())
	}
}

func TestLoopSignature(t *testing.T) {
	n := New(config.Default().Nav)
	l := model.Loc{X: 3, Y: 3}
	n.obstacle = model.Loc{X: 4, Y: 3}
	n.rotation = Clockwise
	if n.looped(l) {
		t.Fatal("first visit reported as loop")
	}
	if !n.looped(l) {
		t.Fatal("identical signature not detected")
	}
	n.attempt++
	if n.looped(l) {
		t.Error("a new attempt must not match the old signature")
	}
}

func TestUnreachableTargetKeepsResetting(t *testing.T) {
	g := newGrid(20, 20)
	g.wall(hline(8, 8, 12)...)
	g.wall(hline(12, 8, 12)...)
	g.wall(vline(8, 8, 12)...)
	g.wall(vline(12, 8, 12)...)
	n := New(config.Default().Nav)
	pos := model.Loc{X: 2, Y: 2}
	for i := 0; i < 200; i++ {
		s := n.Next(pos, model.Loc{X: 10, Y: 10}, g)
		pos = pos.Add(s.Dir)
		if g.walls[pos] {
			t.Fatalf("stepped into wall at %v", pos)
		}
	}
	if n.Resets < 2 {
		t.Errorf("resets = %d, expected the loop detector to fire", n.Resets)
	}
}

// randomWalls scatters straight wall segments over a w×h grid.
func randomWalls(rng *rand.Rand, w, h, segments int) *testGrid {
	g := newGrid(w, h)
	for i := 0; i < segments; i++ {
		x, y, n := rng.Intn(w), rng.Intn(h), 3+rng.Intn(8)
		if rng.Intn(2) == 0 {
			g.wall(hline(y, x, min(x+n, w-1))...)
		} else {
			g.wall(vline(x, y, min(y+n, h-1))...)
		}
	}
	return g
}

func reachable(g *testGrid, from, to model.Loc) bool {
	seen := map[model.Loc]bool{from: true}
	queue := []model.Loc{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		for _, d := range model.Candidates[:8] {
			next := cur.Add(d)
			if g.OnMap(next) && !g.walls[next] && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func TestNavigationTerminatesOnRandomMaps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tried := 0
	for m := 0; m < 40; m++ {
		g := randomWalls(rng, 30, 30, 35)
		for k := 0; k < 6; k++ {
			from := model.Loc{X: rng.Intn(30), Y: rng.Intn(30)}
			to := model.Loc{X: rng.Intn(30), Y: rng.Intn(30)}
			if g.walls[from] || g.walls[to] || !reachable(g, from, to) {
				continue
			}
			tried++
			if rounds := walk(t, g, from, to, 2000); rounds < 0 {
				t.Errorf("map %d: did not reach %v from %v", m, to, from)
			}
		}
	}
	if tried == 0 {
		t.Fatal("no reachable pairs generated")
	}
}

func TestRoutedAfterRepeatedFlips(t *testing.T) {
	g := newGrid(20, 20)
	g.wall(vline(10, 0, 17)...)
	n := New(config.Default().Nav)
	from, to := model.Loc{X: 5, Y: 10}, model.Loc{X: 15, Y: 10}
	n.retarget(from, to)
	n.flips = routeAfter

	s := n.Next(from, to, g)
	if n.Mode() != Routed {
		t.Fatalf("mode = %v, want routed", n.Mode())
	}
	if s.Dir == model.Center {
		t.Fatal("routed navigator stayed put")
	}
	if last := n.route[len(n.route)-1]; last != to {
		t.Errorf("route ends at %v, want %v", last, to)
	}
	for _, l := range n.route {
		if g.walls[l] {
			t.Fatalf("route crosses wall at %v", l)
		}
	}
}

func TestStallFlipDoublesPatience(t *testing.T) {
	n := New(config.Default().Nav)
	g := newGrid(20, 20)
	n.retarget(model.Loc{X: 1, Y: 1}, model.Loc{X: 15, Y: 15})
	start := n.patience
	n.mode = WallFollowing
	n.rotation = Clockwise
	n.obstacle = model.Loc{X: 2, Y: 1}
	n.stall = start
	n.follow(model.Loc{X: 1, Y: 1}, g)
	if n.patience != 2*start || n.flips != 1 {
		t.Errorf("patience %d flips %d, want %d and 1", n.patience, n.flips, 2*start)
	}
}
