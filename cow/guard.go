package cow

import "github.com/kolkov/cowarc/internal/cow/spin"

// ReadGuard grants read access to the value of a CowArc.
//
// The value lock is held until Unlock. The underlying lock has no shared
// mode, so a ReadGuard excludes every other guard on the same value.
type ReadGuard[T any] struct {
	g *spin.Guard[T]
}

// Get returns a copy of the value.
func (r *ReadGuard[T]) Get() T {
	return *r.g.Value()
}

// Value returns a pointer to the value for reading large values in place.
// The value must not be modified through it, and the pointer must not be
// retained past Unlock.
func (r *ReadGuard[T]) Value() *T {
	return r.g.Value()
}

// Unlock releases the value lock.
func (r *ReadGuard[T]) Unlock() {
	r.g.Unlock()
}

// WriteGuard grants write access to the value of an Exclusive CowArc.
type WriteGuard[T any] struct {
	g *spin.Guard[T]
}

// Get returns a copy of the value.
func (w *WriteGuard[T]) Get() T {
	return *w.g.Value()
}

// Set replaces the value.
func (w *WriteGuard[T]) Set(v T) {
	*w.g.Value() = v
}

// Value returns a pointer to the value for in-place modification.
// The pointer must not be retained past Unlock.
func (w *WriteGuard[T]) Value() *T {
	return w.g.Value()
}

// Unlock releases the value lock. Writes are visible to every handle
// sharing the value once Unlock returns.
func (w *WriteGuard[T]) Unlock() {
	w.g.Unlock()
}
