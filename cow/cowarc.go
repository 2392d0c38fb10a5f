package cow

import (
	"github.com/kolkov/cowarc/internal/cow/rc"
	"github.com/kolkov/cowarc/internal/cow/spin"
	"github.com/kolkov/cowarc/internal/cow/stackdepot"
)

// State is the sharing state of a CowArc, derived from the inner count.
type State uint8

const (
	// Exclusive means no other lineage shares the value; mutation is allowed.
	Exclusive State = iota

	// Shared means at least one other lineage shares the value; the value
	// must be copied before it is modified.
	Shared
)

// String returns "Exclusive" or "Shared".
func (s State) String() string {
	switch s {
	case Exclusive:
		return "Exclusive"
	case Shared:
		return "Shared"
	default:
		return "State(" + itoa(uint64(s)) + ")"
	}
}

// Dropper is implemented by values that own resources which must be given
// back when the value dies.
//
// Drop is called exactly once, with the value lock held, by the goroutine
// that releases the last handle of the last lineage sharing the value.
type Dropper interface {
	Drop()
}

// lineage is the record one Clone creates. All shallow clones of a CowArc
// point at the same lineage.
type lineage[T any] struct {
	value  *rc.Arc[spin.Mutex[T]] // Inner handle; its strong count is the share count.
	origin uint64                 // stackdepot hash of the creating call, 0 if untraced.
}

// CowArc is a copy-on-write reference-counted handle to a value of type T.
//
// A CowArc must be released exactly once with Release.
type CowArc[T any] struct {
	arc *rc.Arc[lineage[T]] // Outer handle.
}

// New wraps v in a fresh CowArc in the Exclusive state.
func New[T any](v T) *CowArc[T] {
	value := rc.NewWithDrop(spin.Mutex[T]{}, dropValue[T])
	g := value.Get().Lock()
	*g.Value() = v
	g.Unlock()

	stats.created.Add(1)
	return newLineage(value, origin())
}

func newLineage[T any](value *rc.Arc[spin.Mutex[T]], origin uint64) *CowArc[T] {
	return &CowArc[T]{
		arc: rc.NewWithDrop(lineage[T]{value: value, origin: origin}, dropLineage[T]),
	}
}

// dropLineage runs when the last shallow clone of a lineage is released.
func dropLineage[T any](l *lineage[T]) {
	stats.lineagesDropped.Add(1)
	l.value.Release()
}

// dropValue runs when the last lineage sharing a value is released.
func dropValue[T any](m *spin.Mutex[T]) {
	stats.valuesDropped.Add(1)
	m.Do(func(v *T) {
		if d, ok := any(v).(Dropper); ok {
			d.Drop()
		}
	})
}

// origin captures the public caller's stack when tracing is enabled.
func origin() uint64 {
	if !CurrentConfig().TraceOrigins {
		return 0
	}
	// Skip origin and the New/Clone frame.
	return stackdepot.Capture(2)
}

func (c *CowArc[T]) lineage() *lineage[T] {
	return c.arc.Get()
}

func (c *CowArc[T]) cell() *spin.Mutex[T] {
	return c.lineage().value.Get()
}

// LockRead acquires the value lock for reading.
//
// It always succeeds, spinning while another guard holds the lock. Reading
// is legal in both states. The caller must Unlock the returned guard.
func (c *CowArc[T]) LockRead() *ReadGuard[T] {
	return &ReadGuard[T]{g: c.cell().Lock()}
}

// TryLockWrite acquires the value lock for writing if this lineage is
// Exclusive.
//
// It returns (nil, false) without locking when the cell is Shared. The
// caller should then copy the value into a fresh New instead of retrying.
// On success the caller must Unlock the returned guard.
func (c *CowArc[T]) TryLockWrite() (*WriteGuard[T], bool) {
	if c.IsShared() {
		stats.writesDenied.Add(1)
		return nil, false
	}
	return &WriteGuard[T]{g: c.cell().Lock()}, true
}

// Read runs fn with read access to the value. The lock is released when fn
// returns or panics. fn must not modify *v.
func (c *CowArc[T]) Read(fn func(v *T)) {
	g := c.LockRead()
	defer g.Unlock()
	fn(g.Value())
}

// TryWrite runs fn with write access if the cell is Exclusive and reports
// whether it did. The lock is released when fn returns or panics.
func (c *CowArc[T]) TryWrite(fn func(v *T)) bool {
	g, ok := c.TryLockWrite()
	if !ok {
		return false
	}
	defer g.Unlock()
	fn(g.Value())
	return true
}

// Downgrade returns a weak handle to this lineage. Counts that decide the
// state are not affected.
func (c *CowArc[T]) Downgrade() *CowWeak[T] {
	stats.downgrades.Add(1)
	return &CowWeak[T]{weak: c.arc.Downgrade()}
}

// IsShared reports whether another lineage currently shares the value.
//
// The result can be stale as soon as it is returned.
func (c *CowArc[T]) IsShared() bool {
	return c.lineage().value.StrongCount() > 1
}

// State returns Exclusive or Shared, read from the current share count.
func (c *CowArc[T]) State() State {
	if c.IsShared() {
		return Shared
	}
	return Exclusive
}

// ShareCount returns the number of lineages sharing the value.
func (c *CowArc[T]) ShareCount() int64 {
	return c.lineage().value.StrongCount()
}

// StrongCount returns the number of handles to this lineage, that is, this
// handle plus its live shallow clones and upgraded weak handles.
func (c *CowArc[T]) StrongCount() int64 {
	return c.arc.StrongCount()
}

// CloneShallow returns another handle to the same lineage.
//
// The share count is unchanged, so the clone has the same state as c and
// releasing it never moves any lineage from Shared to Exclusive. Use it to
// pass a temporary reference around within one logical owner.
func (c *CowArc[T]) CloneShallow() *CowArc[T] {
	stats.shallowClones.Add(1)
	return &CowArc[T]{arc: c.arc.Clone()}
}

// Clone returns a handle to a new lineage sharing the same value.
//
// The share count goes up by one, so c, every shallow clone of c, and the
// result are all Shared until one side is released or replaced by a copy.
func (c *CowArc[T]) Clone() *CowArc[T] {
	stats.clones.Add(1)
	return newLineage(c.lineage().value.Clone(), origin())
}

// SameLineage reports whether c and o are shallow clones of each other.
func (c *CowArc[T]) SameLineage(o *CowArc[T]) bool {
	return c.arc.Same(o.arc)
}

// SameValue reports whether c and o share the same underlying value,
// whether or not they are the same lineage.
func (c *CowArc[T]) SameValue(o *CowArc[T]) bool {
	return c.lineage().value.Same(o.lineage().value)
}

// Origin returns the formatted stack that created this lineage, or "" when
// origin tracing was off at creation time.
func (c *CowArc[T]) Origin() string {
	h := c.lineage().origin
	if h == 0 {
		return ""
	}
	return stackdepot.Lookup(h).Format()
}

// Release gives back this handle.
//
// When it was the last handle to its lineage, the lineage gives back its
// share of the value; when that was the last lineage, the value is dropped.
// The handle must not be used afterwards.
func (c *CowArc[T]) Release() {
	c.arc.Release()
}

// itoa formats n in base 10.
func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
