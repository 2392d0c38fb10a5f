package cow

import "github.com/kolkov/cowarc/internal/cow/rc"

// CowWeak is a non-owning handle to the lineage of a CowArc.
//
// It keeps neither the lineage nor the value alive and has no state of its
// own; upgrade it to ask whether the value is Shared. A CowWeak must be
// released exactly once with Release.
type CowWeak[T any] struct {
	weak *rc.Weak[lineage[T]]
}

// Upgrade returns a new handle to the lineage, or (nil, false) once every
// strong handle of the lineage has been released. A failed upgrade is final.
func (w *CowWeak[T]) Upgrade() (*CowArc[T], bool) {
	arc, ok := w.weak.Upgrade()
	if !ok {
		stats.upgradesFailed.Add(1)
		return nil, false
	}
	stats.upgrades.Add(1)
	return &CowArc[T]{arc: arc}, true
}

// Clone returns another weak handle to the same lineage.
func (w *CowWeak[T]) Clone() *CowWeak[T] {
	return &CowWeak[T]{weak: w.weak.Clone()}
}

// Expired reports whether the lineage has no strong handles left, in which
// case Upgrade will never succeed again.
func (w *CowWeak[T]) Expired() bool {
	return w.weak.StrongCount() == 0
}

// Release gives back this weak handle.
func (w *CowWeak[T]) Release() {
	w.weak.Release()
}
