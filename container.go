package authflow

import "github.com/MrEthical07/authflow/internal/nav"

// Container is the navigation stack of one flow. The identifier step is always
// the root. Every mutation re-renders the stack on the surface.
type Container struct {
	surface  PresentationSurface
	stack    *nav.Stack[Screen]
	animated bool
}

func newContainer(surface PresentationSurface, root Screen, animated bool) *Container {
	return &Container{
		surface:  surface,
		stack:    nav.NewStack(root),
		animated: animated,
	}
}

// Screens returns a copy of the stack, root first.
func (c *Container) Screens() []Screen {
	return c.stack.Entries()
}

// Top returns the visible screen.
func (c *Container) Top() Screen {
	return c.stack.Peek()
}

// Root returns the identifier screen.
func (c *Container) Root() Screen {
	return c.stack.Root()
}

// Len returns the stack depth including the root.
func (c *Container) Len() int {
	return c.stack.Len()
}

// Push shows screen on top of the stack.
func (c *Container) Push(screen Screen) {
	c.stack.Push(screen)
	c.render()
}

// Pop removes the top screen. The root is never popped.
func (c *Container) Pop() bool {
	if _, ok := c.stack.Pop(); !ok {
		return false
	}
	c.render()
	return true
}

// PopTo pops until the top screen has the given kind.
func (c *Container) PopTo(kind ScreenKind) bool {
	if !c.stack.PopTo(func(s Screen) bool { return s.Kind == kind }) {
		return false
	}
	c.render()
	return true
}

// PopToRoot pops every screen above the identifier step.
func (c *Container) PopToRoot() {
	c.stack.PopToRoot()
	c.render()
}

// Reset replaces the whole stack with a new root.
func (c *Container) Reset(root Screen) {
	c.stack.Reset(root)
	c.render()
}

// SetLoading toggles the loading state of a step.
func (c *Container) SetLoading(kind ScreenKind, loading bool) {
	c.surface.SetLoading(kind, loading)
}

// ShowError surfaces err on the visible step, falling back to a blocking error
// when the step cannot display it.
func (c *Container) ShowError(err error) {
	if err == nil {
		return
	}
	if c.surface.ShowInlineError(c.Top().Kind, err) {
		return
	}
	c.surface.ShowBlockingError(err)
}

func (c *Container) render() {
	c.surface.Render(c.stack.Entries(), c.animated)
}
