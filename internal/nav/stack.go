// Package nav holds the navigation history of a presented flow.
package nav

// Stack manages navigation history for back navigation. The first entry is the
// root and is never popped by Pop.
type Stack[T any] struct {
	entries []T
}

// NewStack creates a stack holding only root.
func NewStack[T any](root T) *Stack[T] {
	return &Stack[T]{entries: []T{root}}
}

// Push adds a new entry on top.
func (s *Stack[T]) Push(entry T) {
	s.entries = append(s.entries, entry)
}

// Pop removes and returns the top entry. The root cannot be popped; ok is false
// when only the root remains.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if len(s.entries) <= 1 {
		return zero, false
	}
	top := s.entries[len(s.entries)-1]
	s.entries[len(s.entries)-1] = zero
	s.entries = s.entries[:len(s.entries)-1]
	return top, true
}

// PopTo removes entries above the deepest index for which match returns true.
// It reports whether anything was removed.
func (s *Stack[T]) PopTo(match func(T) bool) bool {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if match(s.entries[i]) {
			removed := i < len(s.entries)-1
			s.truncate(i + 1)
			return removed
		}
	}
	return false
}

// PopToRoot removes everything above the root.
func (s *Stack[T]) PopToRoot() bool {
	removed := len(s.entries) > 1
	s.truncate(1)
	return removed
}

// Reset replaces the whole history with a new root.
func (s *Stack[T]) Reset(root T) {
	s.truncate(0)
	s.entries = append(s.entries, root)
}

// Peek returns the top entry.
func (s *Stack[T]) Peek() T {
	return s.entries[len(s.entries)-1]
}

// Root returns the bottom entry.
func (s *Stack[T]) Root() T {
	return s.entries[0]
}

// Len returns the number of entries, root included.
func (s *Stack[T]) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the history, root first.
func (s *Stack[T]) Entries() []T {
	out := make([]T, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Stack[T]) truncate(n int) {
	var zero T
	for i := n; i < len(s.entries); i++ {
		s.entries[i] = zero
	}
	s.entries = s.entries[:n]
}
