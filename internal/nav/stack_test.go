package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackRootIsSticky(t *testing.T) {
	s := NewStack("identifier")
	_, ok := s.Pop()
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "identifier", s.Peek())
}

func TestStackPushPop(t *testing.T) {
	s := NewStack("identifier")
	s.Push("password")
	s.Push("terms")

	top, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, "terms", top)
	assert.Equal(t, "password", s.Peek())
	assert.Equal(t, []string{"identifier", "password"}, s.Entries())
}

func TestStackPopTo(t *testing.T) {
	s := NewStack("identifier")
	s.Push("code")
	s.Push("terms")
	s.Push("profile")

	assert.True(t, s.PopTo(func(v string) bool { return v == "code" }))
	assert.Equal(t, "code", s.Peek())
	assert.False(t, s.PopTo(func(v string) bool { return v == "code" }))
	assert.False(t, s.PopTo(func(v string) bool { return v == "missing" }))
	assert.Equal(t, 2, s.Len())
}

func TestStackResetAndPopToRoot(t *testing.T) {
	s := NewStack("identifier")
	s.Push("password")
	assert.True(t, s.PopToRoot())
	assert.False(t, s.PopToRoot())

	s.Push("password")
	s.Reset("identifier-2")
	assert.Equal(t, []string{"identifier-2"}, s.Entries())
	assert.Equal(t, "identifier-2", s.Root())
}
