package rc

import (
	"sync/atomic"
)

// allocation is the shared block every handle to one payload points at.
type allocation[T any] struct {
	strong atomic.Int64 // Live Arc handles.
	weak   atomic.Int64 // Live Weak handles.
	value  T
	drop   func(*T) // Runs once when strong reaches zero. May be nil.
}

// Arc is a strong reference to a shared payload of type T.
//
// Thread Safety: Clone, Downgrade, StrongCount, WeakCount and Release may be
// called concurrently on distinct handles to the same payload. A single
// handle must not be released concurrently with other use of that handle.
type Arc[T any] struct {
	p        *allocation[T]
	released atomic.Bool
}

// Weak is a non-owning reference to a payload held by one or more Arcs.
type Weak[T any] struct {
	p        *allocation[T]
	released atomic.Bool
}

// New allocates a payload holding v and returns its first strong handle.
//
// Counts after New: strong = 1, weak = 0.
func New[T any](v T) *Arc[T] {
	return NewWithDrop(v, nil)
}

// NewWithDrop is like New but registers drop to run when the payload dies.
//
// drop receives a pointer to the payload and is called exactly once, by the
// goroutine whose Release brings the strong count to zero. After drop
// returns the payload slot is reset to the zero value of T.
func NewWithDrop[T any](v T, drop func(*T)) *Arc[T] {
	p := &allocation[T]{value: v, drop: drop}
	p.strong.Store(1)
	return &Arc[T]{p: p}
}

func (a *Arc[T]) live() *allocation[T] {
	if a.released.Load() {
		panic("rc: use of released Arc")
	}
	return a.p
}

// Get returns a pointer to the payload.
//
// The pointer stays valid for as long as this handle is not released.
// Synchronizing access to the payload is the caller's job.
func (a *Arc[T]) Get() *T {
	return &a.live().value
}

// Clone returns a new strong handle to the same payload.
func (a *Arc[T]) Clone() *Arc[T] {
	p := a.live()
	if c := p.strong.Add(1); c <= 1 {
		// A live handle guarantees strong >= 1 before the increment.
		panic("rc: strong count corrupted")
	}
	return &Arc[T]{p: p}
}

// Downgrade returns a weak handle to the same payload.
// The strong count is unchanged.
func (a *Arc[T]) Downgrade() *Weak[T] {
	p := a.live()
	p.weak.Add(1)
	return &Weak[T]{p: p}
}

// StrongCount returns the current number of strong handles.
//
// The value may be stale by the time the caller looks at it.
func (a *Arc[T]) StrongCount() int64 {
	return a.live().strong.Load()
}

// WeakCount returns the current number of weak handles.
func (a *Arc[T]) WeakCount() int64 {
	return a.live().weak.Load()
}

// Same reports whether a and b refer to the same payload.
func (a *Arc[T]) Same(b *Arc[T]) bool {
	return a.p == b.p
}

// Release gives back this strong handle.
//
// Returns true if this call dropped the payload, that is, if it released the
// last strong handle. The handle must not be used afterwards.
func (a *Arc[T]) Release() bool {
	if !a.released.CompareAndSwap(false, true) {
		panic("rc: Arc released twice")
	}
	p := a.p
	c := p.strong.Add(-1)
	if c < 0 {
		panic("rc: negative strong count")
	}
	if c != 0 {
		return false
	}

	// Upgrade refuses a zero count, so nobody can observe the payload from
	// here on.
	if p.drop != nil {
		p.drop(&p.value)
	}
	var zero T
	p.value = zero
	return true
}

func (w *Weak[T]) live() *allocation[T] {
	if w.released.Load() {
		panic("rc: use of released Weak")
	}
	return w.p
}

// Upgrade tries to obtain a strong handle from a weak one.
//
// It fails iff the strong count is already zero: a dropped payload is never
// resurrected.
func (w *Weak[T]) Upgrade() (*Arc[T], bool) {
	p := w.live()
	for {
		s := p.strong.Load()
		if s == 0 {
			return nil, false
		}
		if p.strong.CompareAndSwap(s, s+1) {
			return &Arc[T]{p: p}, true
		}
		// Lost a race with Clone/Release/Upgrade on another handle; retry.
	}
}

// Clone returns another weak handle to the same payload.
func (w *Weak[T]) Clone() *Weak[T] {
	p := w.live()
	p.weak.Add(1)
	return &Weak[T]{p: p}
}

// StrongCount returns the number of strong handles to the payload.
func (w *Weak[T]) StrongCount() int64 {
	return w.live().strong.Load()
}

// WeakCount returns the number of weak handles to the payload.
func (w *Weak[T]) WeakCount() int64 {
	return w.live().weak.Load()
}

// Release gives back this weak handle.
func (w *Weak[T]) Release() {
	if !w.released.CompareAndSwap(false, true) {
		panic("rc: Weak released twice")
	}
	if c := w.p.weak.Add(-1); c < 0 {
		panic("rc: negative weak count")
	}
}
