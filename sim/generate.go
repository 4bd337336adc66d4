package sim

import (
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

// Generate builds a symmetric match: walls, dirt and mines are mirrored
// through the match symmetry, and each team starts with one leader and
// StartRats rats in mirrored positions. The same options always produce the
// same map.
func Generate(opts Options) *Match {
	m := New(opts)
	if !m.sym.Valid() {
		m.sym = world.AllSymmetries[m.rng.Intn(len(world.AllSymmetries))]
	}

	start := model.Loc{
		X: 3 + m.rng.Intn(max(1, m.W/4)),
		Y: 3 + m.rng.Intn(max(1, m.H/4)),
	}
	starts := [2]model.Loc{start, m.mirror(start)}
	reserved := func(l model.Loc) bool {
		for _, s := range starts {
			if s.Chebyshev(l) <= 3 {
				return true
			}
		}
		return false
	}

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			l := model.Loc{X: x, Y: y}
			twin := m.mirror(l)
			if m.idx(twin) < m.idx(l) || reserved(l) || reserved(twin) {
				continue
			}
			roll := m.rng.Intn(100)
			switch {
			case roll < m.opts.Walls:
				m.tiles[m.idx(l)], m.tiles[m.idx(twin)] = model.Wall, model.Wall
			case roll < m.opts.Walls+m.opts.Dirt:
				m.tiles[m.idx(l)], m.tiles[m.idx(twin)] = model.Dirt, model.Dirt
			}
		}
	}

	for placed, tries := 0, 0; placed < m.opts.Mines && tries < 1000; tries++ {
		l := model.Loc{X: m.rng.Intn(m.W), Y: m.rng.Intn(m.H)}
		twin := m.mirror(l)
		if l == twin || reserved(l) || reserved(twin) || m.Tile(l) != model.Empty || m.Tile(twin) != model.Empty {
			continue
		}
		m.SetTile(l, model.Mine)
		m.SetTile(twin, model.Mine)
		m.cheese[m.idx(l)] += m.opts.MineYield
		m.cheese[m.idx(twin)] += m.opts.MineYield
		placed++
	}

	ring := ringCells(starts[0], 2)
	for t, s := range starts {
		team := model.Team(t)
		m.Place(team, model.King, s)
		for i := 0; i < m.opts.StartRats && i < len(ring); i++ {
			l := ring[i]
			if team == model.TeamB {
				l = m.mirror(l)
			}
			m.Place(team, model.Rat, l)
		}
	}

	for placed, tries := 0, 0; placed < m.opts.Cats && tries < 1000; tries++ {
		l := model.Loc{X: m.rng.Intn(m.W - 1), Y: m.rng.Intn(m.H - 1)}
		if reserved(l) || reserved(l.Offset(1, 1)) {
			continue
		}
		if m.Place(model.Neutral, model.Cat, l) != 0 {
			placed++
		}
	}

	m.log.Info("match generated", "width", m.W, "height", m.H, "symmetry", m.sym,
		"mines", len(m.mines), "cats", m.catCount(), "seed", m.opts.Seed)
	return m
}

func (m *Match) catCount() int {
	n := 0
	for _, u := range m.units {
		if u.Type == model.Cat {
			n++
		}
	}
	return n
}

func (m *Match) mirror(l model.Loc) model.Loc { return world.SymmetricLoc(l, m.sym, m.W, m.H) }

// ringCells lists the cells at exactly Chebyshev distance r from c, starting
// north-west and walking clockwise along the top edge first.
func ringCells(c model.Loc, r int) []model.Loc {
	var out []model.Loc
	for dy := r; dy >= -r; dy-- {
		for dx := -r; dx <= r; dx++ {
			if max(abs(dx), abs(dy)) == r {
				out = append(out, c.Offset(dx, dy))
			}
		}
	}
	return out
}
