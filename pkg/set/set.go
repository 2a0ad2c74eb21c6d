package set

import "slices"

// Set is a set that remembers insertion order. Class lists are ordered on
// the surfaces that render them, so iteration order has to be stable.
type Set[T comparable] struct {
	index map[T]struct{}
	items []T
}

func New[T comparable](items ...T) *Set[T] {
	s := &Set[T]{index: map[T]struct{}{}}
	s.Add(items...)
	return s
}

// Add appends items that are not already present and returns the ones it added
func (s *Set[T]) Add(items ...T) []T {
	if s.index == nil {
		s.index = map[T]struct{}{}
	}
	var added []T
	for _, item := range items {
		if _, ok := s.index[item]; ok {
			continue
		}
		s.index[item] = struct{}{}
		s.items = append(s.items, item)
		added = append(added, item)
	}
	return added
}

// Remove deletes items and returns the ones that were present
func (s *Set[T]) Remove(items ...T) []T {
	var removed []T
	for _, item := range items {
		if _, ok := s.index[item]; !ok {
			continue
		}
		delete(s.index, item)
		removed = append(removed, item)
	}
	if len(removed) > 0 {
		s.items = slices.DeleteFunc(s.items, func(item T) bool {
			_, ok := s.index[item]
			return !ok
		})
	}
	return removed
}

func (s *Set[T]) Contains(item T) bool {
	_, ok := s.index[item]
	return ok
}

func (s *Set[T]) Len() int {
	return len(s.items)
}

func (s *Set[T]) Clear() {
	clear(s.index)
	s.items = s.items[:0]
}

// Slice returns a copy of the members in insertion order
func (s *Set[T]) Slice() []T {
	return slices.Clone(s.items)
}
