package world

import (
	"math/rand"
	"testing"

	"github.com/nstehr/hive/hive-core/model"
)

func TestSymmetricLoc(t *testing.T) {
	l := model.Loc{X: 2, Y: 5}
	tests := []struct {
		s    Symmetry
		want model.Loc
	}{
		{SymUnknown, model.Loc{X: 2, Y: 5}},
		{MirrorX, model.Loc{X: 17, Y: 5}},
		{MirrorY, model.Loc{X: 2, Y: 9}},
		{Rotate180, model.Loc{X: 17, Y: 9}},
	}
	for _, tc := range tests {
		got := SymmetricLoc(l, tc.s, 20, 15)
		if got != tc.want {
			t.Errorf("SymmetricLoc(%v, %v) = %v, want %v", l, tc.s, got, tc.want)
		}
		if back := SymmetricLoc(got, tc.s, 20, 15); back != l {
			t.Errorf("%v is not an involution: %v → %v → %v", tc.s, l, got, back)
		}
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b model.TileKind
		want bool
	}{
		{model.Unknown, model.Wall, true},
		{model.Wall, model.Wall, true},
		{model.Wall, model.Empty, false},
		{model.Mine, model.Empty, false},
		{model.Mine, model.Wall, false},
		{model.Dirt, model.Empty, true},
		{model.Empty, model.Dirt, true},
	}
	for _, tc := range tests {
		if got := compatible(tc.a, tc.b); got != tc.want {
			t.Errorf("compatible(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

// symmetricBoard builds a w×h board that is symmetric under s and, for the
// seeds used here, under no other candidate.
func symmetricBoard(w, h int, s Symmetry, seed int64) [][]model.TileKind {
	rng := rand.New(rand.NewSource(seed))
	board := make([][]model.TileKind, w)
	for x := range board {
		board[x] = make([]model.TileKind, h)
		for y := range board[x] {
			board[x][y] = model.Empty
		}
	}
	for i := 0; i < w*h/6; i++ {
		l := model.Loc{X: rng.Intn(w), Y: rng.Intn(h)}
		k := model.Wall
		if rng.Intn(5) == 0 {
			k = model.Mine
		}
		m := SymmetricLoc(l, s, w, h)
		board[l.X][l.Y] = k
		board[m.X][m.Y] = k
	}
	return board
}

func boardSymmetricUnder(board [][]model.TileKind, s Symmetry) bool {
	w, h := len(board), len(board[0])
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			m := SymmetricLoc(model.Loc{X: x, Y: y}, s, w, h)
			if !compatible(board[x][y], board[m.X][m.Y]) {
				return false
			}
		}
	}
	return true
}

func TestSymmetryConvergence(t *testing.T) {
	const w, h = 24, 18
	for _, want := range AllSymmetries {
		board := symmetricBoard(w, h, want, int64(want)*17)
		for _, other := range AllSymmetries {
			if other != want && boardSymmetricUnder(board, other) {
				t.Fatalf("fixture for %v is also symmetric under %v", want, other)
			}
		}

		for order := int64(0); order < 5; order++ {
			var tiles []model.TileInfo
			for x := 0; x < w; x++ {
				for y := 0; y < h; y++ {
					tiles = append(tiles, model.TileInfo{Loc: model.Loc{X: x, Y: y}, Kind: board[x][y]})
				}
			}
			rng := rand.New(rand.NewSource(order))
			rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })

			m := New(w, h)
			resolvedAt := -1
			for i := 0; i < len(tiles); i += 10 {
				m.Observe(tiles[i:min(i+10, len(tiles))])
				if ok, _ := m.Resolve(); ok {
					resolvedAt = i
				}
				if m.Symmetry() != SymUnknown && m.Symmetry() != want {
					t.Fatalf("%v order %d: resolved to %v", want, order, m.Symmetry())
				}
			}
			if resolvedAt < 0 {
				t.Fatalf("%v order %d: never resolved", want, order)
			}
			if m.Symmetry() != want {
				t.Errorf("%v order %d: final hypothesis %v", want, order, m.Symmetry())
			}
		}
	}
}

func TestResolveBackfillsMirrors(t *testing.T) {
	m := New(10, 10)
	// Two walls that only mirror-x explains, plus a mine on the left.
	m.Observe([]model.TileInfo{
		{Loc: model.Loc{X: 1, Y: 1}, Kind: model.Wall},
		{Loc: model.Loc{X: 8, Y: 1}, Kind: model.Wall},
		{Loc: model.Loc{X: 1, Y: 8}, Kind: model.Empty},
		{Loc: model.Loc{X: 2, Y: 4}, Kind: model.Mine},
	})
	x, y, r := m.Candidates()
	if !x || y || r {
		t.Fatalf("candidates = %v %v %v, want only mirror-x", x, y, r)
	}
	ok, mines := m.Resolve()
	if !ok || m.Symmetry() != MirrorX {
		t.Fatalf("Resolve() = %v, symmetry %v", ok, m.Symmetry())
	}
	if len(mines) != 1 || mines[0] != (model.Loc{X: 7, Y: 4}) {
		t.Errorf("inferred mines = %v, want [(7,4)]", mines)
	}
	if got := m.Tile(model.Loc{X: 8, Y: 8}); got != model.Empty {
		t.Errorf("mirror of (1,8) = %v, want empty", got)
	}
	if got := len(m.Mines()); got != 2 {
		t.Errorf("known mines = %d, want 2", got)
	}

	// Fixed hypotheses never change.
	if ok, _ := m.Adopt(Rotate180); ok || m.Symmetry() != MirrorX {
		t.Error("Adopt must not override a fixed hypothesis")
	}
	if ok, _ := m.Resolve(); ok {
		t.Error("Resolve after fixing should report no change")
	}
}

func TestAdoptFromPeerStopsEvaluation(t *testing.T) {
	m := New(10, 10)
	if ok, _ := m.Adopt(Symmetry(7)); ok {
		t.Fatal("invalid ordinal must be ignored")
	}
	if ok, _ := m.Adopt(MirrorY); !ok {
		t.Fatal("Adopt should fix an unknown hypothesis")
	}
	// A tile pair contradicting mirror-y no longer matters.
	m.Observe([]model.TileInfo{
		{Loc: model.Loc{X: 3, Y: 0}, Kind: model.Wall},
		{Loc: model.Loc{X: 3, Y: 9}, Kind: model.Empty},
	})
	if m.Symmetry() != MirrorY {
		t.Errorf("symmetry = %v, want mirror-y", m.Symmetry())
	}
	// The wall's mirror was inferred before the conflicting observation, and
	// the real observation overwrites it.
	if got := m.Tile(model.Loc{X: 3, Y: 9}); got != model.Empty {
		t.Errorf("observed tile = %v, want empty", got)
	}
}

func TestObserveTracksMineDepletion(t *testing.T) {
	m := New(8, 8)
	found := m.Observe([]model.TileInfo{{Loc: model.Loc{X: 2, Y: 2}, Kind: model.Mine, Cheese: 5}})
	if len(found) != 1 {
		t.Fatalf("found = %v, want one mine", found)
	}
	if m.CheeseAt(model.Loc{X: 2, Y: 2}) != 5 {
		t.Error("cheese should be recorded")
	}
	if again := m.Observe([]model.TileInfo{{Loc: model.Loc{X: 2, Y: 2}, Kind: model.Mine}}); len(again) != 0 {
		t.Errorf("re-observing a mine should find nothing, got %v", again)
	}
	m.Observe([]model.TileInfo{{Loc: model.Loc{X: 2, Y: 2}, Kind: model.Empty}})
	if len(m.Mines()) != 0 {
		t.Errorf("depleted mine should be dropped, have %v", m.Mines())
	}
	if m.Tile(model.Loc{X: -1, Y: 0}) != model.Wall {
		t.Error("off-map cells read as wall")
	}
}

func TestPickFrontier(t *testing.T) {
	m := New(9, 9) // 3×3 blocks
	rng := rand.New(rand.NewSource(1))

	// Nothing seen: the unit's own block is the first frontier.
	if got := m.PickFrontier(model.Loc{X: 4, Y: 4}, rng); got != (model.Loc{X: 4, Y: 4}) {
		t.Errorf("first frontier = %v, want (4,4)", got)
	}

	var seen []model.TileInfo
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			if x >= 6 && y >= 6 {
				continue
			}
			seen = append(seen, model.TileInfo{Loc: model.Loc{X: x, Y: y}, Kind: model.Empty})
		}
	}
	m.Observe(seen)
	if got := m.PickFrontier(model.Loc{X: 0, Y: 0}, rng); got != (model.Loc{X: 7, Y: 7}) {
		t.Errorf("frontier = %v, want the last block centre (7,7)", got)
	}
	if m.Visited.Remaining() != 1 {
		t.Errorf("remaining blocks = %d, want 1", m.Visited.Remaining())
	}

	m.Observe([]model.TileInfo{{Loc: model.Loc{X: 8, Y: 8}, Kind: model.Empty}})
	got := m.PickFrontier(model.Loc{X: 0, Y: 0}, rng)
	if !m.OnMap(got) {
		t.Errorf("fully explored map should fall back to a random cell, got %v", got)
	}
}

func TestPickLandmarkExcludesLeaders(t *testing.T) {
	m := New(20, 20)
	marks := m.Landmarks()
	if len(marks) != 9 {
		t.Fatalf("landmarks = %d, want 9", len(marks))
	}
	leader := model.Loc{X: 2, Y: 2}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		got := m.PickLandmark([]model.Loc{leader}, 36, rng)
		if got.DistSq(leader) <= 36 {
			t.Fatalf("picked %v within exclusion radius of %v", got, leader)
		}
	}

	var all []model.Loc
	all = append(all, marks...)
	got := m.PickLandmark(all, 0, rng)
	if !m.OnMap(got) {
		t.Errorf("all landmarks excluded should fall back to a map cell, got %v", got)
	}
}
