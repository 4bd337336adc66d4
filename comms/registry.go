package comms

import (
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/world"
)

// Registry is a unit's view of the team's known mines, keyed by lossy code.
// Entries are unique under the codec and, once symmetry is fixed, under the
// mirror transform as well. A parallel cooldown table excludes mines that were
// recently depleted, contested, or repeatedly unreachable.
type Registry struct {
	codec  LocCodec
	known  *IntSet
	mirror func(int) int

	cooldown map[int]int // code → first round it is usable again
	fails    map[int]int

	// published holds codes this unit already wrote to the shared array, so a
	// second write in the same round cannot happen before the count updates.
	published *IntSet
}

func NewRegistry(codec LocCodec) *Registry {
	return &Registry{
		codec:     codec,
		known:     NewIntSet(),
		cooldown:  make(map[int]int),
		fails:     make(map[int]int),
		published: NewIntSet(),
	}
}

func (r *Registry) Len() int { return r.known.Len() }

// Codes returns the entries in discovery order.
func (r *Registry) Codes() []int { return r.known.Values() }

// Contains reports whether code, or its mirror once symmetry is fixed, is known.
func (r *Registry) Contains(code int) bool {
	if r.known.Has(code) {
		return true
	}
	return r.mirror != nil && r.known.Has(r.mirror(code))
}

// Add records a mine location and reports whether it was new.
func (r *Registry) Add(l model.Loc) bool { return r.AddCode(r.codec.Encode(l)) }

func (r *Registry) AddCode(code int) bool {
	if code <= 0 || r.Contains(code) {
		return false
	}
	return r.known.Add(code)
}

// Locs decodes every entry.
func (r *Registry) Locs() []model.Loc {
	out := make([]model.Loc, 0, r.known.Len())
	for _, c := range r.known.Values() {
		if l, ok := r.codec.Decode(c); ok {
			out = append(out, l)
		}
	}
	return out
}

// SetSymmetry installs the mirror transform and merges mirror pairs, keeping
// whichever of each pair was discovered first.
func (r *Registry) SetSymmetry(sym world.Symmetry, w, h int) {
	if !sym.Valid() {
		return
	}
	r.mirror = MirrorCode(r.codec, sym, w, h)
	merged := NewIntSet()
	for _, c := range r.known.Values() {
		if merged.Has(c) || merged.Has(r.mirror(c)) {
			continue
		}
		merged.Add(c)
	}
	r.known = merged
}

// Mirror returns the mirror transform on codes, nil while symmetry is unknown.
func (r *Registry) Mirror() func(int) int { return r.mirror }

// MirrorCode maps codes through a symmetry by decoding, mirroring and re-encoding.
func MirrorCode(codec LocCodec, sym world.Symmetry, w, h int) func(int) int {
	return func(code int) int {
		l, ok := codec.Decode(code)
		if !ok {
			return 0
		}
		return codec.Encode(world.SymmetricLoc(l, sym, w, h))
	}
}

// Cooldown excludes code until the given round.
func (r *Registry) Cooldown(code, until int) {
	if until > r.cooldown[code] {
		r.cooldown[code] = until
	}
}

func (r *Registry) InCooldown(code, round int) bool {
	return round < r.cooldown[code]
}

// ClearCooldowns forgets every exclusion and failure count.
func (r *Registry) ClearCooldowns() {
	clear(r.cooldown)
	clear(r.fails)
}

// RecordFailure counts a failed approach; after limit failures the mine is
// cooled down for the given number of rounds.
func (r *Registry) RecordFailure(code, round, limit, rounds int) bool {
	r.fails[code]++
	if r.fails[code] < limit {
		return false
	}
	r.fails[code] = 0
	r.Cooldown(code, round+rounds)
	return true
}

// Available lists decoded mines not in cooldown.
func (r *Registry) Available(round int) []model.Loc {
	var out []model.Loc
	for _, c := range r.known.Values() {
		if r.InCooldown(c, round) {
			continue
		}
		if l, ok := r.codec.Decode(c); ok {
			out = append(out, l)
		}
	}
	return out
}

// Merge unions codes read from the shared array or squeaks and returns how many were new.
func (r *Registry) Merge(codes []int) int {
	n := 0
	for _, c := range codes {
		if r.AddCode(c) {
			n++
		}
	}
	return n
}

// Publish appends every locally known entry missing from the shared array.
// Only leaders call it. It returns the number of entries written; a full
// registry stops growth silently.
func (r *Registry) Publish(s *Shared) (int, error) {
	codes, err := s.MineCodes()
	if err != nil {
		return 0, err
	}
	present := NewIntSet(codes...)
	written := 0
	for _, c := range r.known.Values() {
		if present.Has(c) || (r.mirror != nil && present.Has(r.mirror(c))) || r.published.Has(c) {
			continue
		}
		ok, err := s.AppendMine(c)
		if err != nil {
			return written, err
		}
		if !ok {
			break
		}
		present.Add(c)
		r.published.Add(c)
		written++
	}
	return written, nil
}

// EndRound clears the same-round shadow set.
func (r *Registry) EndRound() { r.published.Clear() }
