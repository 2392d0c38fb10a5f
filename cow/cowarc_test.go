package cow

import (
	"testing"
)

// read returns a copy of the value through a scoped read guard.
func read[T any](c *CowArc[T]) T {
	g := c.LockRead()
	defer g.Unlock()
	return g.Get()
}

// TestNew_Exclusive verifies a fresh cell is never shared.
func TestNew_Exclusive(t *testing.T) {
	tests := []struct {
		name string
		cell interface {
			IsShared() bool
			State() State
			ShareCount() int64
			Release()
		}
	}{
		{"int", New(42)},
		{"zero int", New(0)},
		{"string", New("pml4")},
		{"struct", New(pageTable{})},
		{"nil slice", New([]uint64(nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.cell.Release()
			if tt.cell.IsShared() {
				t.Error("IsShared() = true for a fresh cell")
			}
			if got := tt.cell.State(); got != Exclusive {
				t.Errorf("State() = %v, want Exclusive", got)
			}
			if got := tt.cell.ShareCount(); got != 1 {
				t.Errorf("ShareCount() = %d, want 1", got)
			}
		})
	}
}

// TestCloneShallow_SameLineage verifies shallow clones keep state and see writes.
func TestCloneShallow_SameLineage(t *testing.T) {
	t.Run("exclusive", func(t *testing.T) {
		c := New(1)
		defer c.Release()

		s := c.CloneShallow()
		defer s.Release()

		if s.IsShared() != c.IsShared() {
			t.Fatalf("IsShared mismatch: clone %v, original %v", s.IsShared(), c.IsShared())
		}
		if s.IsShared() {
			t.Fatal("shallow clone made the cell Shared")
		}
		if !s.SameLineage(c) {
			t.Error("SameLineage() = false for a shallow clone")
		}
		if got := c.StrongCount(); got != 2 {
			t.Errorf("StrongCount() = %d, want 2", got)
		}

		if !s.TryWrite(func(v *int) { *v = 10 }) {
			t.Fatal("TryWrite through shallow clone of Exclusive cell refused")
		}
		if got := read(c); got != 10 {
			t.Errorf("write through shallow clone not visible: got %d", got)
		}

		if !c.TryWrite(func(v *int) { *v = 11 }) {
			t.Fatal("TryWrite through original refused")
		}
		if got := read(s); got != 11 {
			t.Errorf("write through original not visible in shallow clone: got %d", got)
		}
	})

	t.Run("shared", func(t *testing.T) {
		c := New(1)
		defer c.Release()
		sibling := c.Clone()
		defer sibling.Release()

		s := c.CloneShallow()
		if !s.IsShared() || !c.IsShared() {
			t.Fatal("shallow clone of a Shared cell is not Shared")
		}
		s.Release()

		// Releasing a shallow clone must not return anyone to Exclusive.
		if !c.IsShared() {
			t.Error("releasing a shallow clone changed the share count")
		}
	})
}

// TestClone_InducesSharing verifies Clone moves both sides to Shared.
func TestClone_InducesSharing(t *testing.T) {
	c := New("cr3")
	defer c.Release()
	shallow := c.CloneShallow()
	defer shallow.Release()

	c2 := c.Clone()
	defer c2.Release()

	for name, cell := range map[string]*CowArc[string]{"original": c, "shallow": shallow, "clone": c2} {
		if !cell.IsShared() {
			t.Errorf("%s: IsShared() = false after Clone", name)
		}
		if got := cell.State(); got != Shared {
			t.Errorf("%s: State() = %v, want Shared", name, got)
		}
	}

	if c2.SameLineage(c) {
		t.Error("Clone produced the same lineage")
	}
	if !c2.SameValue(c) {
		t.Error("Clone does not share the value")
	}
	if got := c.ShareCount(); got != 2 {
		t.Errorf("ShareCount() = %d, want 2", got)
	}
}

// TestTryLockWrite_Gating verifies mutation is allowed iff the cell is Exclusive.
func TestTryLockWrite_Gating(t *testing.T) {
	c := New(0)
	defer c.Release()

	g, ok := c.TryLockWrite()
	if !ok {
		t.Fatal("TryLockWrite() refused on Exclusive cell")
	}
	g.Set(5)
	g.Unlock()

	shallow := c.CloneShallow()
	if got := read(shallow); got != 5 {
		t.Errorf("write not visible through shallow clone: got %d", got)
	}
	shallow.Release()

	c2 := c.Clone()
	if g, ok := c.TryLockWrite(); ok {
		g.Unlock()
		t.Fatal("TryLockWrite() granted on Shared cell")
	}
	if g, ok := c2.TryLockWrite(); ok {
		g.Unlock()
		t.Fatal("TryLockWrite() granted on Shared clone")
	}
	if c.TryWrite(func(*int) { t.Error("TryWrite ran fn on Shared cell") }) {
		t.Error("TryWrite() = true on Shared cell")
	}

	// Reads are always legal.
	if got := read(c2); got != 5 {
		t.Errorf("read through clone = %d, want 5", got)
	}

	c2.Release()
	if !c.TryWrite(func(v *int) { *v++ }) {
		t.Fatal("TryWrite() refused after last sibling released")
	}
	if got := read(c); got != 6 {
		t.Errorf("value = %d, want 6", got)
	}
}

// TestClone_SharedStorageUntilReplaced verifies siblings share one value
// until one of them replaces itself with a fresh copy, in both directions.
func TestClone_SharedStorageUntilReplaced(t *testing.T) {
	// A sibling born while a writer holds the lock still shares the value
	// and sees the write.
	t.Run("write through original visible in clone", func(t *testing.T) {
		c := New(1)
		defer c.Release()

		g, ok := c.TryLockWrite()
		if !ok {
			t.Fatal("TryLockWrite() refused on fresh cell")
		}
		c2 := c.Clone()
		defer c2.Release()
		g.Set(2)
		g.Unlock()

		if got := read(c2); got != 2 {
			t.Errorf("clone read %d, want 2", got)
		}
	})

	t.Run("write through clone visible in original", func(t *testing.T) {
		parent := New(1)
		c2 := parent.Clone()
		parent.Release()

		g, ok := c2.TryLockWrite()
		if !ok {
			t.Fatal("TryLockWrite() refused on sole remaining lineage")
		}
		c := c2.Clone()
		defer c.Release()
		defer c2.Release()
		g.Set(3)
		g.Unlock()

		if got := read(c); got != 3 {
			t.Errorf("original read %d, want 3", got)
		}
	})

	t.Run("clone diverges by copying", func(t *testing.T) {
		c := New(pageTable{})
		defer c.Release()
		c2 := c.Clone()

		if c2.TryWrite(func(pt *pageTable) { pt.entries[0] = 0x1000 }) {
			t.Fatal("TryWrite on Shared clone succeeded")
		}
		fresh := New(read(c2))
		c2.Release()
		c2 = fresh
		defer c2.Release()

		if !c2.TryWrite(func(pt *pageTable) { pt.entries[0] = 0x1000 }) {
			t.Fatal("TryWrite on fresh copy refused")
		}
		if got := read(c).entries[0]; got != 0 {
			t.Errorf("write through diverged clone leaked to original: %#x", got)
		}
		if c.IsShared() {
			t.Error("original still Shared after clone replaced itself")
		}
		if !c.TryWrite(func(pt *pageTable) { pt.entries[1] = 0x2000 }) {
			t.Fatal("original refused write after divergence")
		}
		if got := read(c2).entries[1]; got != 0 {
			t.Errorf("write through original leaked to diverged clone: %#x", got)
		}
	})

	t.Run("original diverges by copying", func(t *testing.T) {
		c := New(pageTable{})
		c2 := c.Clone()
		defer c2.Release()

		fresh := New(read(c))
		c.Release()
		c = fresh
		defer c.Release()

		if !c.TryWrite(func(pt *pageTable) { pt.entries[3] = 0x3000 }) {
			t.Fatal("TryWrite on fresh original refused")
		}
		if got := read(c2).entries[3]; got != 0 {
			t.Errorf("write through diverged original leaked to clone: %#x", got)
		}
		if c2.IsShared() {
			t.Error("clone still Shared after original replaced itself")
		}
	})
}

// TestRelease_ReturnsToExclusive verifies the count-driven reversal.
func TestRelease_ReturnsToExclusive(t *testing.T) {
	c := New(0)
	defer c.Release()

	siblings := make([]*CowArc[int], 0, 3)
	for i := 0; i < 3; i++ {
		siblings = append(siblings, c.Clone())
	}
	if got := c.ShareCount(); got != 4 {
		t.Fatalf("ShareCount() = %d, want 4", got)
	}

	for i, s := range siblings {
		if !c.IsShared() {
			t.Fatalf("cell Exclusive with %d siblings left", len(siblings)-i)
		}
		s.Release()
	}

	if c.IsShared() {
		t.Error("IsShared() = true after every sibling lineage was released")
	}
}

// TestRelease_ShallowClonesKeepLineage verifies a lineage lives while any
// shallow clone does.
func TestRelease_ShallowClonesKeepLineage(t *testing.T) {
	c := New(0)
	defer c.Release()

	c2 := c.Clone()
	s := c2.CloneShallow()
	c2.Release()

	if !c.IsShared() {
		t.Fatal("lineage dropped while a shallow clone was still live")
	}
	s.Release()
	if c.IsShared() {
		t.Error("lineage survived release of its last shallow clone")
	}
}

// TestExampleScenario walks the canonical create/write/clone/deny/drop sequence.
func TestExampleScenario(t *testing.T) {
	c := New(42)
	defer c.Release()

	if c.IsShared() {
		t.Fatal("fresh cell is Shared")
	}
	g, ok := c.TryLockWrite()
	if !ok {
		t.Fatal("TryLockWrite() refused on fresh cell")
	}
	g.Set(43)
	g.Unlock()

	c2 := c.Clone()
	if !c.IsShared() || !c2.IsShared() {
		t.Fatal("cells not Shared after Clone")
	}
	if _, ok := c.TryLockWrite(); ok {
		t.Fatal("TryLockWrite() granted while Shared")
	}
	if got := read(c2); got != 43 {
		t.Fatalf("clone reads %d, want 43", got)
	}

	c2.Release()
	if c.IsShared() {
		t.Fatal("cell still Shared after clone released")
	}
	g, ok = c.TryLockWrite()
	if !ok {
		t.Fatal("TryLockWrite() refused after clone released")
	}
	g.Unlock()
}

// TestRead_ReleasesOnPanic verifies the scoped helpers unlock on every path.
func TestRead_ReleasesOnPanic(t *testing.T) {
	c := New(1)
	defer c.Release()

	func() {
		defer func() { _ = recover() }()
		c.Read(func(*int) { panic("reader fault") })
	}()
	func() {
		defer func() { _ = recover() }()
		c.TryWrite(func(*int) { panic("writer fault") })
	}()

	if c.cell().IsLocked() {
		t.Fatal("value lock held after panicking accessor")
	}

	c.Read(func(v *int) {
		if *v != 1 {
			t.Errorf("value = %d, want 1", *v)
		}
	})
}

// TestDropper_RunsOnLastLineage verifies values are destroyed exactly once,
// when the last handle of the last lineage goes.
func TestDropper_RunsOnLastLineage(t *testing.T) {
	frames := &frameAllocator{}
	c := New(addressSpace{frames: frames, root: 0x7000})
	s := c.CloneShallow()
	c2 := c.Clone()
	w := c.Downgrade()
	defer w.Release()

	c.Release()
	s.Release()
	if frames.freed != nil {
		t.Fatal("value dropped while a sibling lineage was live")
	}
	if !w.Expired() {
		t.Error("weak handle not expired after its lineage was released")
	}

	c2.Release()
	if len(frames.freed) != 1 || frames.freed[0] != 0x7000 {
		t.Errorf("freed = %v, want [0x7000]", frames.freed)
	}
}

// TestStats verifies counters move with operations.
func TestStats(t *testing.T) {
	ResetStats()

	c := New(0)
	c2 := c.Clone()
	s := c.CloneShallow()
	c.TryWrite(func(*int) {})
	w := c.Downgrade()
	if u, ok := w.Upgrade(); ok {
		u.Release()
	}
	s.Release()
	c.Release()
	c2.Release()
	if _, ok := w.Upgrade(); ok {
		t.Fatal("Upgrade succeeded after release")
	}
	w.Release()

	got := ReadStats()
	want := Stats{
		Created:         1,
		Clones:          1,
		ShallowClones:   1,
		Downgrades:      1,
		Upgrades:        1,
		UpgradesFailed:  1,
		WritesDenied:    1,
		LineagesDropped: 2,
		ValuesDropped:   1,
	}
	if got != want {
		t.Errorf("ReadStats() = %+v, want %+v", got, want)
	}
	if got.LiveValues() != 0 || got.LiveLineages() != 0 {
		t.Errorf("live values %d, live lineages %d; want 0, 0", got.LiveValues(), got.LiveLineages())
	}
}

// TestState_String verifies state names.
func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Exclusive, "Exclusive"},
		{Shared, "Shared"},
		{State(7), "State(7)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", uint8(tt.state), got, tt.want)
		}
	}
}

// pageTable is a small fixed-size table used as a test payload.
type pageTable struct {
	entries [8]uint64
}

// frameAllocator records frames returned to it.
type frameAllocator struct {
	freed []uint64
}

// addressSpace owns a root frame and returns it on Drop.
type addressSpace struct {
	frames *frameAllocator
	root   uint64
}

func (as *addressSpace) Drop() {
	as.frames.freed = append(as.frames.freed, as.root)
}
