package world

import "github.com/nstehr/hive/hive-core/model"

// Symmetry is the transform relating the two teams' halves of the map.
// The non-zero ordinals are what the shared array and squeaks carry.
type Symmetry int

const (
	SymUnknown Symmetry = iota
	MirrorX             // x → w-1-x
	MirrorY             // y → h-1-y
	Rotate180           // both axes
)

func (s Symmetry) String() string {
	switch s {
	case MirrorX:
		return "mirror-x"
	case MirrorY:
		return "mirror-y"
	case Rotate180:
		return "rotate"
	}
	return "unknown"
}

// Valid reports whether s names a concrete transform.
func (s Symmetry) Valid() bool { return s >= MirrorX && s <= Rotate180 }

// AllSymmetries lists the concrete candidates.
var AllSymmetries = [3]Symmetry{MirrorX, MirrorY, Rotate180}

// SymmetricLoc maps l through s on a w×h map. Unknown symmetry is the identity.
func SymmetricLoc(l model.Loc, s Symmetry, w, h int) model.Loc {
	switch s {
	case MirrorX:
		return model.Loc{X: w - 1 - l.X, Y: l.Y}
	case MirrorY:
		return model.Loc{X: l.X, Y: h - 1 - l.Y}
	case Rotate180:
		return model.Loc{X: w - 1 - l.X, Y: h - 1 - l.Y}
	}
	return l
}

// compatible reports whether two observations can be mirror images. Unknown
// tiles never conflict; otherwise a wall or mine must match exactly.
func compatible(a, b model.TileKind) bool {
	if a == model.Unknown || b == model.Unknown {
		return true
	}
	if a.Hard() || b.Hard() {
		return a == b
	}
	return true
}
