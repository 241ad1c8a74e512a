package utils

// OrderedSet keeps unique comparable items in insertion order, so
// registry traversals stay deterministic for a given registration
// sequence.
type OrderedSet[T comparable] struct {
	seen  map[T]struct{}
	items []T
}

// Add inserts item if absent and reports whether it was inserted.
func (s *OrderedSet[T]) Add(item T) bool {
	if s.seen == nil {
		s.seen = make(map[T]struct{})
	}
	if _, exists := s.seen[item]; exists {
		return false
	}
	s.seen[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

func (s *OrderedSet[T]) Contains(item T) bool {
	_, exists := s.seen[item]
	return exists
}

func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}

// Items returns a copy of the set in insertion order.
func (s *OrderedSet[T]) Items() []T {
	items := make([]T, len(s.items))
	copy(items, s.items)
	return items
}
