package eval

import (
	"fmt"

	"github.com/leapstack-labs/leaptmpl/pkg/value"
)

// Context is the caller-supplied root data for a render. It is only ever
// read during rendering, so one Context may be shared by concurrent renders.
type Context map[string]value.Value

// NewContext converts plain Go data into a Context.
func NewContext(data map[string]any) (Context, error) {
	ctx := make(Context, len(data))
	for k, v := range data {
		if err := ctx.Set(k, v); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// Set converts v with value.FromGo and stores it under key.
func (c Context) Set(key string, v any) error {
	cv, err := value.FromGo(v)
	if err != nil {
		return fmt.Errorf("context %q: %w", key, err)
	}
	c[key] = cv
	return nil
}

// Merge returns a new Context holding c overlaid with other.
func (c Context) Merge(other Context) Context {
	out := make(Context, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Scope is one frame of a render-local scope chain. Lookups fall through to
// parent frames; writes always go to the receiver frame.
type Scope struct {
	parent *Scope
	vars   map[string]value.Value
}

// NewScope creates the scope chain for one render. The Context sits in a
// read-only bottom frame; the returned frame is owned by the render.
func NewScope(ctx Context) *Scope {
	root := &Scope{vars: ctx}
	return root.Push()
}

// Push returns a new child frame.
func (s *Scope) Push() *Scope {
	return &Scope{parent: s}
}

// Lookup finds name in the nearest frame that defines it.
func (s *Scope) Lookup(name string) (value.Value, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds name in this frame.
func (s *Scope) Set(name string, v value.Value) {
	if s.vars == nil {
		s.vars = make(map[string]value.Value)
	}
	s.vars[name] = v
}

// Depth returns the number of frames in the chain.
func (s *Scope) Depth() int {
	n := 0
	for f := s; f != nil; f = f.parent {
		n++
	}
	return n
}
