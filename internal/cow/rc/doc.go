// Package rc implements atomically reference-counted ownership cells.
//
// An Arc owns one strong reference to a shared payload. A Weak refers to the
// same payload without keeping it alive. The payload is dropped when the last
// strong reference is released, independent of how many weak references are
// still outstanding.
//
// # Counts
//
// Every allocation carries two counters:
//   - strong: number of live Arc handles
//   - weak: number of live Weak handles
//
// Both are plain atomics. Clone, Downgrade, Upgrade and Release never take a
// lock, so the package is usable from any goroutine, including code that is
// itself holding a spin lock.
//
// # Handles
//
// Handles are pointers and each one accounts for exactly one count. Go has no
// destructors, so a handle is given back with an explicit Release:
//
//	a := rc.New(pageTable{})
//	b := a.Clone()     // strong = 2
//	w := a.Downgrade() // weak = 1
//	a.Release()        // strong = 1
//	b.Release()        // strong = 0, payload dropped
//	_, ok := w.Upgrade() // ok == false
//	w.Release()
//
// Releasing the same handle twice, or using a handle after Release, panics.
// Count corruption would otherwise silently free a payload that another
// holder still uses.
//
// # Drop hooks
//
// NewWithDrop attaches a function that runs exactly once, on the goroutine
// that releases the last strong handle, before the payload slot is zeroed.
// Nested ownership (an Arc whose payload holds another Arc) is released by
// the outer payload's drop hook.
package rc
