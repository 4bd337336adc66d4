// Package world is a unit's private model of the map: the tiles it has seen,
// a coarse visited grid for exploration, and the inferred map symmetry.
package world

import (
	"math/rand"

	"github.com/nstehr/hive/hive-core/model"
)

// Map is lazily filled as tiles are observed and never shrinks. Only a mine can
// change kind once observed (it is depleted to empty), and dirt can come and go.
type Map struct {
	W, H    int
	Visited *VisitedGrid

	tiles  []model.TileKind
	cheese []int

	canMirrorX bool
	canMirrorY bool
	canRotate  bool
	sym        Symmetry

	mines []model.Loc
}

func New(w, h int) *Map {
	return &Map{
		W:          w,
		H:          h,
		Visited:    NewVisitedGrid(w, h, BlockSize),
		tiles:      make([]model.TileKind, w*h),
		cheese:     make([]int, w*h),
		canMirrorX: true,
		canMirrorY: true,
		canRotate:  true,
	}
}

func (m *Map) OnMap(l model.Loc) bool { return l.InBounds(m.W, m.H) }

func (m *Map) idx(l model.Loc) int { return l.Y*m.W + l.X }

// Tile returns what is known about l. Off-map cells read as Wall.
func (m *Map) Tile(l model.Loc) model.TileKind {
	if !m.OnMap(l) {
		return model.Wall
	}
	return m.tiles[m.idx(l)]
}

// CheeseAt is the loose cheese last seen on l.
func (m *Map) CheeseAt(l model.Loc) int {
	if !m.OnMap(l) {
		return 0
	}
	return m.cheese[m.idx(l)]
}

// Mines returns the known mine locations in discovery order.
func (m *Map) Mines() []model.Loc { return m.mines }

// Symmetry returns the fixed hypothesis, or SymUnknown.
func (m *Map) Symmetry() Symmetry { return m.sym }

// Candidates reports which transforms are still consistent with observations.
func (m *Map) Candidates() (mirrorX, mirrorY, rotate bool) {
	return m.canMirrorX, m.canMirrorY, m.canRotate
}

// Mirror maps l through the fixed symmetry; identity while unknown.
func (m *Map) Mirror(l model.Loc) model.Loc { return SymmetricLoc(l, m.sym, m.W, m.H) }

// Observe ingests freshly sensed tiles and returns mines not previously known.
// While symmetry is unknown each newly seen tile is checked against its three
// candidate mirror cells; once fixed, mirror cells are filled in directly.
func (m *Map) Observe(tiles []model.TileInfo) []model.Loc {
	var found []model.Loc
	for _, t := range tiles {
		if !m.OnMap(t.Loc) {
			continue
		}
		i := m.idx(t.Loc)
		m.Visited.Mark(t.Loc)
		m.cheese[i] = t.Cheese
		prev := m.tiles[i]
		if prev == t.Kind {
			continue
		}
		m.tiles[i] = t.Kind
		if prev == model.Mine {
			m.removeMine(t.Loc)
		}
		if t.Kind == model.Mine {
			m.mines = append(m.mines, t.Loc)
			found = append(found, t.Loc)
		}
		if prev != model.Unknown {
			continue
		}
		if m.sym == SymUnknown {
			m.checkCandidates(t.Loc, t.Kind)
			continue
		}
		if l, ok := m.inferMirror(t.Loc, t.Kind); ok {
			found = append(found, l)
		}
	}
	return found
}

func (m *Map) checkCandidates(l model.Loc, k model.TileKind) {
	if m.canMirrorX && !compatible(k, m.Tile(SymmetricLoc(l, MirrorX, m.W, m.H))) {
		m.canMirrorX = false
	}
	if m.canMirrorY && !compatible(k, m.Tile(SymmetricLoc(l, MirrorY, m.W, m.H))) {
		m.canMirrorY = false
	}
	if m.canRotate && !compatible(k, m.Tile(SymmetricLoc(l, Rotate180, m.W, m.H))) {
		m.canRotate = false
	}
}

// inferMirror fills the mirror of l if it is still unknown. It reports the
// mirror location when that created a new mine.
func (m *Map) inferMirror(l model.Loc, k model.TileKind) (model.Loc, bool) {
	ml := m.Mirror(l)
	if ml == l || !m.OnMap(ml) {
		return model.NoLoc, false
	}
	j := m.idx(ml)
	if m.tiles[j] != model.Unknown {
		return model.NoLoc, false
	}
	m.tiles[j] = k
	if k == model.Mine {
		m.mines = append(m.mines, ml)
		return ml, true
	}
	return model.NoLoc, false
}

func (m *Map) removeMine(l model.Loc) {
	for i, ml := range m.mines {
		if ml == l {
			m.mines = append(m.mines[:i], m.mines[i+1:]...)
			return
		}
	}
}

// Resolve fixes the hypothesis once exactly one candidate survives. It reports
// whether this call fixed it, and any mines inferred by back-filling.
func (m *Map) Resolve() (bool, []model.Loc) {
	if m.sym != SymUnknown {
		return false, nil
	}
	var only Symmetry
	n := 0
	if m.canMirrorX {
		only, n = MirrorX, n+1
	}
	if m.canMirrorY {
		only, n = MirrorY, n+1
	}
	if m.canRotate {
		only, n = Rotate180, n+1
	}
	if n != 1 {
		return false, nil
	}
	return true, m.fix(only)
}

// Adopt fixes the hypothesis to a value learned from a peer. A hypothesis that
// is already fixed never changes.
func (m *Map) Adopt(s Symmetry) (bool, []model.Loc) {
	if m.sym != SymUnknown || !s.Valid() {
		return false, nil
	}
	return true, m.fix(s)
}

func (m *Map) fix(s Symmetry) []model.Loc {
	m.sym = s
	m.canMirrorX = s == MirrorX
	m.canMirrorY = s == MirrorY
	m.canRotate = s == Rotate180

	var found []model.Loc
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			l := model.Loc{X: x, Y: y}
			k := m.tiles[m.idx(l)]
			if k == model.Unknown {
				continue
			}
			if ml, ok := m.inferMirror(l, k); ok {
				found = append(found, ml)
			}
		}
	}
	return found
}

// Landmarks are the 9 fixed exploration points: corners, edge midpoints and the
// centre, inset from the border.
func (m *Map) Landmarks() []model.Loc {
	inset := min(2, m.W/4, m.H/4)
	xs := [3]int{inset, m.W / 2, m.W - 1 - inset}
	ys := [3]int{inset, m.H / 2, m.H - 1 - inset}
	out := make([]model.Loc, 0, 9)
	for _, y := range ys {
		for _, x := range xs {
			out = append(out, model.Loc{X: x, Y: y})
		}
	}
	return out
}

// PickLandmark chooses uniformly among the landmarks farther than radiusSq from
// every excluded location (known leaders). With nothing left it falls back to a
// random cell.
func (m *Map) PickLandmark(exclude []model.Loc, radiusSq int, rng *rand.Rand) model.Loc {
	var options []model.Loc
	for _, l := range m.Landmarks() {
		near := false
		for _, e := range exclude {
			if l.DistSq(e) <= radiusSq {
				near = true
				break
			}
		}
		if !near {
			options = append(options, l)
		}
	}
	if len(options) == 0 {
		return m.RandomCell(rng)
	}
	return options[rng.Intn(len(options))]
}

// PickFrontier searches the visited grid in expanding Chebyshev rings around
// the block containing from and returns the centre of the first unvisited block.
// A fully explored map yields a random cell.
func (m *Map) PickFrontier(from model.Loc, rng *rand.Rand) model.Loc {
	g := m.Visited
	bc, br := g.BlockOf(from)
	maxR := max(g.Cols, g.Rows)
	for r := 0; r <= maxR; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				c, w := bc+dx, br+dy
				if c < 0 || c >= g.Cols || w < 0 || w >= g.Rows {
					continue
				}
				if !g.Visited(c, w) {
					return g.BlockCenter(c, w, m.W, m.H)
				}
			}
		}
	}
	return m.RandomCell(rng)
}

// RandomCell returns a uniformly random map cell.
func (m *Map) RandomCell(rng *rand.Rand) model.Loc {
	return model.Loc{X: rng.Intn(m.W), Y: rng.Intn(m.H)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
