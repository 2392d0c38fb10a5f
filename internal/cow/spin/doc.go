// Package spin implements a busy-waiting mutual-exclusion cell.
//
// Mutex wraps a value of type T and hands out at most one Guard at a time.
// A Guard is the only way to reach the value; it is given back with Unlock.
//
// Acquisition never parks the goroutine on a wait queue. Contended callers
// spin on an atomic word, backing off with runtime.Gosched after a bounded
// number of attempts. This keeps the lock usable where no scheduler hand-off
// is wanted (early boot paths, handlers that must not block on other
// goroutines) while still letting other goroutines run on a saturated
// GOMAXPROCS.
//
// There is no timeout and no failure mode: Lock always returns a Guard
// eventually. Hold the lock briefly.
//
// Scoped use:
//
//	g := m.Lock()
//	defer g.Unlock()
//	g.Value().refs++
//
// or, equivalently:
//
//	m.Do(func(v *entry) { v.refs++ })
package spin
