package sim

import (
	"strings"

	"github.com/nstehr/hive/hive-core/model"
)

// Render draws the board with north at the top. Team A is lower case,
// team B upper case; kings fill their whole body.
//
//	#  wall     %  dirt     M  mine     *  loose cheese
//	a  rat      k  king     C  cat
func (m *Match) Render() string {
	cells := make([]byte, m.W*m.H)
	for i, k := range m.tiles {
		switch {
		case k == model.Wall:
			cells[i] = '#'
		case k == model.Dirt:
			cells[i] = '%'
		case k == model.Mine:
			cells[i] = 'M'
		case m.cheese[i] > 0:
			cells[i] = '*'
		default:
			cells[i] = '.'
		}
	}
	for _, u := range m.units {
		if !u.alive || u.Carried {
			continue
		}
		glyph := glyphFor(u.Team, u.Type)
		for _, b := range u.Body() {
			if m.onMap(b) {
				cells[m.idx(b)] = glyph
			}
		}
	}

	var sb strings.Builder
	sb.Grow((m.W + 1) * m.H)
	for y := m.H - 1; y >= 0; y-- {
		sb.Write(cells[y*m.W : (y+1)*m.W])
		sb.WriteByte('\n')
	}
	return sb.String()
}

func glyphFor(t model.Team, typ model.UnitType) byte {
	var g byte
	switch typ {
	case model.Cat:
		return 'C'
	case model.King:
		g = 'k'
	default:
		g = 'a'
	}
	if t == model.TeamB {
		g -= 'a' - 'A'
	}
	return g
}
