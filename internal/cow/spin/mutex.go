package spin

import (
	"runtime"
	"sync/atomic"
)

const (
	unlocked int32 = 0
	locked   int32 = 1

	// activeSpins is how many pure busy-wait rounds a contended Lock makes
	// before it starts yielding the processor between attempts.
	activeSpins = 64

	// spinCycles is the number of relaxed loads per busy-wait round.
	spinCycles = 32
)

// Mutex is a spin lock protecting a value of type T.
//
// The zero Mutex is unlocked and holds the zero value of T.
// A Mutex must not be copied after first use.
type Mutex[T any] struct {
	state atomic.Int32
	value T
}

// Guard grants exclusive access to the value of a locked Mutex.
//
// A Guard belongs to the goroutine that acquired it and must be unlocked
// exactly once.
type Guard[T any] struct {
	m    *Mutex[T]
	done bool
}

// New returns an unlocked Mutex holding v.
func New[T any](v T) *Mutex[T] {
	return &Mutex[T]{value: v}
}

// Lock acquires the mutex, spinning until it is free.
func (m *Mutex[T]) Lock() *Guard[T] {
	if !m.state.CompareAndSwap(unlocked, locked) {
		m.lockSlow()
	}
	return &Guard[T]{m: m}
}

func (m *Mutex[T]) lockSlow() {
	var spins int
	for {
		// Test before test-and-set keeps the cache line shared while the
		// holder is working.
		if m.state.Load() == unlocked && m.state.CompareAndSwap(unlocked, locked) {
			return
		}
		delay(&m.state, &spins)
	}
}

// delay waits a little before the next acquisition attempt.
func delay(state *atomic.Int32, spins *int) {
	if *spins < activeSpins {
		*spins++
		for i := 0; i < spinCycles; i++ {
			if state.Load() == unlocked {
				return
			}
		}
		return
	}
	runtime.Gosched()
}

// TryLock acquires the mutex only if it is free right now.
func (m *Mutex[T]) TryLock() (*Guard[T], bool) {
	if m.state.CompareAndSwap(unlocked, locked) {
		return &Guard[T]{m: m}, true
	}
	return nil, false
}

// IsLocked reports whether some guard currently holds the mutex.
// The answer may be stale immediately.
func (m *Mutex[T]) IsLocked() bool {
	return m.state.Load() == locked
}

// Do runs fn with the lock held. The lock is released when fn returns or
// panics.
func (m *Mutex[T]) Do(fn func(v *T)) {
	g := m.Lock()
	defer g.Unlock()
	fn(g.Value())
}

// Value returns a pointer to the protected value.
// The pointer must not be retained past Unlock.
func (g *Guard[T]) Value() *T {
	if g.done {
		panic("spin: use of unlocked guard")
	}
	return &g.m.value
}

// Unlock releases the mutex.
func (g *Guard[T]) Unlock() {
	if g.done {
		panic("spin: unlock of unlocked guard")
	}
	g.done = true
	g.m.state.Store(unlocked)
}
