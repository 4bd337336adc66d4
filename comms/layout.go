// Package comms implements the team coordination protocol: the layout of the
// shared array, location codecs, squeak multiplexing and relay, the mine
// registry and leader liveness tracking.
//
// Every write is last-write-wins with no locking. The protocols here are
// idempotent so that arbitrary interleaving between units converges.
package comms

import (
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

// SharedMemory is the host's team-wide integer array.
type SharedMemory interface {
	ReadShared(index int) (int, error)
	WriteShared(index, value int) error
}

// Layout names every region of the shared array so readers and writers agree
// on one declaration.
type Layout struct {
	Symmetry   int
	Origin     int
	LeaderLocs int // first of MaxLeaders consecutive slots
	AliveBits  int
	Distress   int
	Assemble   int
	MineCount  int
	Mines      int // first mine slot; the registry runs to Size-1
	MaxLeaders int
	Size       int
}

// DefaultLayout is the 64-slot layout.
var DefaultLayout = Layout{
	Symmetry:   0,
	Origin:     1,
	LeaderLocs: 2,
	AliveBits:  7,
	Distress:   8,
	Assemble:   9,
	MineCount:  10,
	Mines:      11,
	MaxLeaders: 5,
	Size:       64,
}

// MineCapacity is how many registry entries fit.
func (l Layout) MineCapacity() int { return l.Size - l.Mines }

// Shared is a typed view over the host's shared array.
type Shared struct {
	Layout Layout
	Codec  LocCodec
	mem    SharedMemory
}

func NewShared(mem SharedMemory, layout Layout, codec LocCodec) *Shared {
	return &Shared{Layout: layout, Codec: codec, mem: mem}
}

func (s *Shared) read(i int) (int, error) {
	if i < 0 || i >= s.Layout.Size {
		return 0, nil
	}
	return s.mem.ReadShared(i)
}

// write drops anything past the end of the array.
func (s *Shared) write(i, v int) error {
	if i < 0 || i >= s.Layout.Size {
		return nil
	}
	return s.mem.WriteShared(i, v)
}

func (s *Shared) readLoc(i int) (model.Loc, bool, error) {
	v, err := s.read(i)
	if err != nil {
		return model.NoLoc, false, err
	}
	l, ok := s.Codec.Decode(v)
	return l, ok, nil
}

func (s *Shared) Symmetry() (world.Symmetry, error) {
	v, err := s.read(s.Layout.Symmetry)
	if err != nil {
		return world.SymUnknown, err
	}
	sym := world.Symmetry(v)
	if !sym.Valid() {
		return world.SymUnknown, nil
	}
	return sym, nil
}

func (s *Shared) SetSymmetry(sym world.Symmetry) error {
	return s.write(s.Layout.Symmetry, int(sym))
}

// Origin is the team's first leader location, the anchor for spawn prediction.
func (s *Shared) Origin() (model.Loc, bool, error) { return s.readLoc(s.Layout.Origin) }

func (s *Shared) SetOrigin(l model.Loc) error {
	return s.write(s.Layout.Origin, s.Codec.Encode(l))
}

func (s *Shared) LeaderLoc(slot int) (model.Loc, bool, error) {
	if slot < 0 || slot >= s.Layout.MaxLeaders {
		return model.NoLoc, false, nil
	}
	return s.readLoc(s.Layout.LeaderLocs + slot)
}

func (s *Shared) SetLeaderLoc(slot int, l model.Loc) error {
	if slot < 0 || slot >= s.Layout.MaxLeaders {
		return nil
	}
	return s.write(s.Layout.LeaderLocs+slot, s.Codec.Encode(l))
}

// ClearLeader empties a slot's location and distress bit.
func (s *Shared) ClearLeader(slot int) error {
	if slot < 0 || slot >= s.Layout.MaxLeaders {
		return nil
	}
	if err := s.write(s.Layout.LeaderLocs+slot, 0); err != nil {
		return err
	}
	return s.SetDistress(slot, false)
}

// FirstEmptyLeaderSlot returns -1 when all slots are occupied.
func (s *Shared) FirstEmptyLeaderSlot() (int, error) {
	for i := 0; i < s.Layout.MaxLeaders; i++ {
		v, err := s.read(s.Layout.LeaderLocs + i)
		if err != nil {
			return -1, err
		}
		if v == 0 {
			return i, nil
		}
	}
	return -1, nil
}

// LeaderEntry is one occupied slot.
type LeaderEntry struct {
	Slot     int
	Loc      model.Loc
	Distress bool
}

// Leaders lists the occupied slots in slot order.
func (s *Shared) Leaders() ([]LeaderEntry, error) {
	distress, err := s.read(s.Layout.Distress)
	if err != nil {
		return nil, err
	}
	var out []LeaderEntry
	for i := 0; i < s.Layout.MaxLeaders; i++ {
		l, ok, err := s.LeaderLoc(i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, LeaderEntry{Slot: i, Loc: l, Distress: distress&(1<<i) != 0})
		}
	}
	return out, nil
}

func (s *Shared) bit(index, slot int) (bool, error) {
	v, err := s.read(index)
	if err != nil {
		return false, err
	}
	return v&(1<<slot) != 0, nil
}

func (s *Shared) setBit(index, slot int, on bool) error {
	v, err := s.read(index)
	if err != nil {
		return err
	}
	nv := v &^ (1 << slot)
	if on {
		nv |= 1 << slot
	}
	if nv == v {
		return nil
	}
	return s.write(index, nv)
}

func (s *Shared) Alive(slot int) (bool, error) { return s.bit(s.Layout.AliveBits, slot) }

// ToggleAlive flips the slot's heartbeat bit.
func (s *Shared) ToggleAlive(slot int) error {
	on, err := s.Alive(slot)
	if err != nil {
		return err
	}
	return s.setBit(s.Layout.AliveBits, slot, !on)
}

func (s *Shared) Distress(slot int) (bool, error) { return s.bit(s.Layout.Distress, slot) }

func (s *Shared) SetDistress(slot int, on bool) error {
	return s.setBit(s.Layout.Distress, slot, on)
}

// Assemble is the pending "assemble here" request, if any.
func (s *Shared) Assemble() (model.Loc, bool, error) { return s.readLoc(s.Layout.Assemble) }

func (s *Shared) SetAssemble(l model.Loc) error {
	return s.write(s.Layout.Assemble, s.Codec.Encode(l))
}

func (s *Shared) ClearAssemble() error { return s.write(s.Layout.Assemble, 0) }

func (s *Shared) MineCount() (int, error) { return s.read(s.Layout.MineCount) }

// MineCodes returns the registry entries currently in the array.
func (s *Shared) MineCodes() ([]int, error) {
	n, err := s.MineCount()
	if err != nil {
		return nil, err
	}
	n = min(n, s.Layout.MineCapacity())
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v, err := s.read(s.Layout.Mines + i)
		if err != nil {
			return nil, err
		}
		if v != 0 {
			out = append(out, v)
		}
	}
	return out, nil
}

// AppendMine writes code into the next free registry slot and bumps the count.
// It reports false, without error, once the registry is full.
func (s *Shared) AppendMine(code int) (bool, error) {
	n, err := s.MineCount()
	if err != nil {
		return false, err
	}
	if n >= s.Layout.MineCapacity() {
		return false, nil
	}
	if err := s.write(s.Layout.Mines+n, code); err != nil {
		return false, err
	}
	if err := s.write(s.Layout.MineCount, n+1); err != nil {
		return false, err
	}
	return true, nil
}

// CondenseMines rewrites the registry contiguously, dropping entries whose
// mirror image appears earlier, and zero-fills the freed tail.
func (s *Shared) CondenseMines(mirror func(code int) int) error {
	n, err := s.MineCount()
	if err != nil {
		return err
	}
	n = min(n, s.Layout.MineCapacity())
	codes := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v, err := s.read(s.Layout.Mines + i)
		if err != nil {
			return err
		}
		codes = append(codes, v)
	}

	keep := NewIntSet()
	for _, c := range codes {
		if c == 0 || keep.Has(c) || keep.Has(mirror(c)) {
			continue
		}
		keep.Add(c)
	}
	for i, c := range keep.Values() {
		if codes[i] == c {
			continue
		}
		if err := s.write(s.Layout.Mines+i, c); err != nil {
			return err
		}
	}
	for i := keep.Len(); i < n; i++ {
		if err := s.write(s.Layout.Mines+i, 0); err != nil {
			return err
		}
	}
	if keep.Len() == n {
		return nil
	}
	return s.write(s.Layout.MineCount, keep.Len())
}
