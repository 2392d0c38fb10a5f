// Package cow provides a copy-on-write, reference-counted shared cell.
//
// CowArc[T] lets many holders read one value cheaply while allowing in-place
// mutation only when no other independent copy of the value exists. It is
// meant for kernel structures that are copied often and modified rarely,
// such as page tables or process descriptors duplicated on fork.
//
// # Two levels of counting
//
// A CowArc is two nested reference counts around a spin lock:
//
//	CowArc ──outer──▶ lineage record ──inner──▶ spin.Mutex[T]
//
//   - The outer count tracks handles to one lineage record. CloneShallow
//     bumps it. Shallow clones are the same logical copy.
//   - The inner count tracks lineage records sharing the value. Clone
//     creates a new record and bumps it. Clones are separate logical copies
//     that happen to share storage.
//
// # States
//
// The state is read from the inner count every time it is asked for:
//
//	Exclusive  inner count == 1  mutation allowed
//	Shared     inner count  > 1  mutation refused, copy instead
//
// Nothing caches the state. It moves from Exclusive to Shared when another
// lineage is cloned off and back when the last sibling lineage is released.
//
// # Usage
//
//	pt := cow.New(pageTable{})
//	child := pt.Clone() // both are now Shared
//
//	if !child.TryWrite(func(t *pageTable) { t.Map(va, pa) }) {
//		// Another lineage can see the value: copy it instead.
//		var cp pageTable
//		child.Read(func(t *pageTable) { cp = t.DeepCopy() })
//		fresh := cow.New(cp)
//		child.Release()
//		child = fresh
//		child.TryWrite(func(t *pageTable) { t.Map(va, pa) })
//	}
//
// Every handle obtained from New, Clone, CloneShallow or Upgrade must be
// given back with Release. Guards must be given back with Unlock; the
// scoped helpers Read and TryWrite do that on every exit path.
//
// # Concurrency
//
// All operations are safe for concurrent use on distinct handles. Counts are
// atomic and lock-free. Read and write access go through one spin lock per
// value; readers do not run in parallel.
//
// IsShared and TryLockWrite are racy by nature: a lineage observed as
// Exclusive can become Shared right after the check if another goroutine
// clones it. A writer already holding a WriteGuard is not stopped, and its
// write is visible to the new sibling. Callers that need clone and mutate
// to be ordered must serialize them themselves.
//
// # Tracing
//
// With Config.TraceOrigins set (or COWARC_TRACE=1 and ConfigFromEnv), New
// and Clone record the creating call stack, available from Origin. This is
// for finding who holds the sibling lineage that keeps a cell Shared.
package cow
