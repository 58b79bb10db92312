package rules

// orderedSet keeps first-insertion order and ignores repeats.
type orderedSet[T comparable] struct {
	seen  map[T]struct{}
	order []T
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{seen: make(map[T]struct{})}
}

// add reports whether v was new.
func (s *orderedSet[T]) add(v T) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

func (s *orderedSet[T]) items() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}
