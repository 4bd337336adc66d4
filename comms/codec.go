package comms

import "github.com/nstehr/hive/hive-core/model"

// LosslessCells is the largest map area stored at full precision.
const LosslessCells = 1024

// LocCodec packs a location into one shared-array integer. Maps larger than
// LosslessCells halve both axes, so neighbouring cells may share a code.
// Zero is reserved for "absent".
type LocCodec struct {
	Divisor  int
	ReducedH int
}

func NewLocCodec(mapW, mapH int) LocCodec {
	d := 1
	if mapW*mapH > LosslessCells {
		d = 2
	}
	return LocCodec{Divisor: d, ReducedH: (mapH + d - 1) / d}
}

// Lossless reports whether Decode(Encode(l)) == l for every l.
func (c LocCodec) Lossless() bool { return c.Divisor == 1 }

func (c LocCodec) Encode(l model.Loc) int {
	return (l.X/c.Divisor)*c.ReducedH + l.Y/c.Divisor + 1
}

// Decode inverts Encode. Code 0 (and anything negative) is never a location.
func (c LocCodec) Decode(code int) (model.Loc, bool) {
	if code <= 0 {
		return model.NoLoc, false
	}
	v := code - 1
	return model.Loc{X: (v / c.ReducedH) * c.Divisor, Y: (v % c.ReducedH) * c.Divisor}, true
}

const exactMask = 0x3f

// EncodeExact packs a location at full precision into 12 bits (6 per axis).
// Squeaks that steer combat use it instead of the lossy codec.
func EncodeExact(l model.Loc) int {
	return (l.X&exactMask)<<6 | l.Y&exactMask
}

func DecodeExact(code int) model.Loc {
	return model.Loc{X: code >> 6 & exactMask, Y: code & exactMask}
}
