package model

// Direction is one of the 8 compass directions or Center.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
	Center
)

// Directions is the 8 movement directions in clockwise order starting at North.
var Directions = [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

// Candidates is the fixed evaluation order of the 9 per-turn actions.
// The scoring engine breaks ties by this order.
var Candidates = [9]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest, Center}

var dirDX = [9]int{0, 1, 1, 1, 0, -1, -1, -1, 0}
var dirDY = [9]int{1, 1, 0, -1, -1, -1, 0, 1, 0}

var dirNames = [9]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW", "C"}

func (d Direction) String() string {
	if d < North || d > Center {
		return "?"
	}
	return dirNames[d]
}

func (d Direction) DX() int { return dirDX[d] }
func (d Direction) DY() int { return dirDY[d] }

// RotateRight turns 45° clockwise. Center stays Center.
func (d Direction) RotateRight() Direction {
	if d == Center {
		return Center
	}
	return (d + 1) % 8
}

// RotateLeft turns 45° counter-clockwise. Center stays Center.
func (d Direction) RotateLeft() Direction {
	if d == Center {
		return Center
	}
	return (d + 7) % 8
}

func (d Direction) Opposite() Direction {
	if d == Center {
		return Center
	}
	return (d + 4) % 8
}

// Cone returns d and its two 45° neighbours, the cells a facing unit can see or throw into.
func (d Direction) Cone() [3]Direction {
	return [3]Direction{d, d.RotateLeft(), d.RotateRight()}
}

// InCone reports whether o is within one rotation step of d.
func (d Direction) InCone(o Direction) bool {
	if d == Center || o == Center {
		return false
	}
	return o == d || o == d.RotateLeft() || o == d.RotateRight()
}

// DirectionOf maps a unit vector to its direction.
func DirectionOf(dx, dy int) Direction {
	for i := range dirDX {
		if dirDX[i] == dx && dirDY[i] == dy {
			return Direction(i)
		}
	}
	return Center
}

// reachOffsets lists, per direction, the cells an action aimed that way may target, nearest first.
// Dig and place helpers iterate this table instead of switching on the direction.
var reachOffsets = func() [8][]Loc {
	var t [8][]Loc
	for _, d := range Directions {
		l, r := d.RotateLeft(), d.RotateRight()
		t[d] = []Loc{
			{X: d.DX(), Y: d.DY()},
			{X: l.DX(), Y: l.DY()},
			{X: r.DX(), Y: r.DY()},
			{X: 2 * d.DX(), Y: 2 * d.DY()},
		}
	}
	return t
}()

// ReachCells returns the candidate target cells for an action aimed from `from` in direction d.
func ReachCells(from Loc, d Direction) []Loc {
	if d == Center {
		return nil
	}
	offs := reachOffsets[d]
	out := make([]Loc, len(offs))
	for i, o := range offs {
		out[i] = from.Offset(o.X, o.Y)
	}
	return out
}
