// Package handle maps wrapper objects to opaque tokens that the native engine
// hands back on every callback.
//
// A token is stored on the engine object with rtcSetUserPointer and returned
// verbatim as the last callback argument. Resolve runs on the engine's
// callback thread, so lookups are lock-free; Register and Release happen on
// application goroutines.
package handle

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrResolutionFailure is returned when a token does not map to a live object.
// Seeing it means an engine callback arrived after its object was torn down.
var ErrResolutionFailure = errors.New("handle resolution failure")

// Token identifies a registered object. The zero Token is never issued.
type Token uintptr

// Observer receives registry lifecycle notifications.
type Observer interface {
	Registered()
	Released()
	Missed(t Token)
}

// Registry holds a strong reference to every registered object until its
// token is released. Tokens are never reused.
type Registry struct {
	objects  sync.Map // Token -> any
	next     atomic.Uint64
	live     atomic.Int64
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver installs an observer for register/release/miss events.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds v to a fresh token.
func (r *Registry) Register(v any) Token {
	t := Token(r.next.Add(1))
	r.objects.Store(t, v)
	r.live.Add(1)
	if r.observer != nil {
		r.observer.Registered()
	}
	return t
}

// Resolve returns the object bound to t. It never blocks on Register or
// Release and returns ErrResolutionFailure for unknown or released tokens.
func (r *Registry) Resolve(t Token) (any, error) {
	if v, ok := r.objects.Load(t); ok {
		return v, nil
	}
	if r.observer != nil {
		r.observer.Missed(t)
	}
	return nil, fmt.Errorf("%w: token %d", ErrResolutionFailure, t)
}

// Release invalidates t. Releasing an unknown token is a no-op.
func (r *Registry) Release(t Token) {
	if _, loaded := r.objects.LoadAndDelete(t); !loaded {
		return
	}
	r.live.Add(-1)
	if r.observer != nil {
		r.observer.Released()
	}
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	return int(r.live.Load())
}
