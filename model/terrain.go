package model

// TileKind classifies a single map cell. Unknown means the cell has never been
// observed or inferred.
type TileKind byte

const (
	Unknown TileKind = iota
	Empty            // passable ground
	Wall             // impassable, permanent
	Dirt             // impassable until removed; can be dug or placed
	Mine             // cheese mine (resource node); passable
)

func (k TileKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	case Dirt:
		return "dirt"
	case Mine:
		return "mine"
	}
	return "unknown"
}

// Hard tiles are the permanent features symmetry inference can trust.
func (k TileKind) Hard() bool { return k == Wall || k == Mine }

// Blocking reports whether a unit cannot stand on the tile.
func (k TileKind) Blocking() bool { return k == Wall || k == Dirt }

// TileInfo is one sensed cell.
type TileInfo struct {
	Loc    Loc      `json:"loc"`
	Kind   TileKind `json:"kind"`
	Cheese int      `json:"cheese"` // loose cheese lying on the cell
}
