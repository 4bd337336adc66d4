package model

import "fmt"

// Loc is a cell on the simulation grid. (0,0) is the bottom-left corner.
type Loc struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NoLoc marks an absent location. It is never on any map.
var NoLoc = Loc{X: -1, Y: -1}

func (l Loc) String() string { return fmt.Sprintf("(%d,%d)", l.X, l.Y) }

// Valid reports whether l is not the NoLoc sentinel.
func (l Loc) Valid() bool { return l.X >= 0 && l.Y >= 0 }

// Add returns the neighbouring cell in direction d.
func (l Loc) Add(d Direction) Loc {
	return Loc{X: l.X + d.DX(), Y: l.Y + d.DY()}
}

// Offset translates l by (dx, dy).
func (l Loc) Offset(dx, dy int) Loc {
	return Loc{X: l.X + dx, Y: l.Y + dy}
}

// DistSq is the squared euclidean distance, the metric every radius in the game uses.
func (l Loc) DistSq(o Loc) int {
	dx := l.X - o.X
	dy := l.Y - o.Y
	return dx*dx + dy*dy
}

// Chebyshev is the king-move distance between two cells.
func (l Loc) Chebyshev(o Loc) int {
	return max(abs(l.X-o.X), abs(l.Y-o.Y))
}

// Adjacent reports whether o is one of the 8 neighbours of l (or l itself).
func (l Loc) Adjacent(o Loc) bool {
	return l.Chebyshev(o) <= 1
}

// DirTo returns the compass direction that best approximates the vector l→o.
func (l Loc) DirTo(o Loc) Direction {
	dx := sign(o.X - l.X)
	dy := sign(o.Y - l.Y)
	// Snap shallow diagonals to the dominant axis.
	ax, ay := abs(o.X-l.X), abs(o.Y-l.Y)
	if ax > 2*ay {
		dy = 0
	} else if ay > 2*ax {
		dx = 0
	}
	return DirectionOf(dx, dy)
}

// InBounds reports whether l lies on a w×h map.
func (l Loc) InBounds(w, h int) bool {
	return l.X >= 0 && l.Y >= 0 && l.X < w && l.Y < h
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
