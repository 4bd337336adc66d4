package comms

// IntSet is an insertion-ordered set of integers.
type IntSet struct {
	order []int
	index map[int]int
}

func NewIntSet(vals ...int) *IntSet {
	s := &IntSet{index: make(map[int]int)}
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

// Add reports whether v was not already present.
func (s *IntSet) Add(v int) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.order)
	s.order = append(s.order, v)
	return true
}

func (s *IntSet) Has(v int) bool {
	_, ok := s.index[v]
	return ok
}

// Remove deletes v, keeping the order of the rest.
func (s *IntSet) Remove(v int) bool {
	i, ok := s.index[v]
	if !ok {
		return false
	}
	delete(s.index, v)
	s.order = append(s.order[:i], s.order[i+1:]...)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
	return true
}

func (s *IntSet) Len() int { return len(s.order) }

// Values returns the members in insertion order. The slice must not be modified.
func (s *IntSet) Values() []int { return s.order }

// Union adds every member of o and returns how many were new.
func (s *IntSet) Union(o *IntSet) int {
	n := 0
	for _, v := range o.order {
		if s.Add(v) {
			n++
		}
	}
	return n
}

func (s *IntSet) Clear() {
	s.order = s.order[:0]
	clear(s.index)
}
