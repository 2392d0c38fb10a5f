package cow

import "sync/atomic"

// Stats is a snapshot of package-wide operation counters.
//
// Counters are updated with independent atomic adds, so a snapshot taken
// while other goroutines run is not a consistent cut.
type Stats struct {
	Created         uint64 // New calls.
	Clones          uint64 // Clone calls (new lineages sharing a value).
	ShallowClones   uint64 // CloneShallow calls.
	Downgrades      uint64 // Downgrade calls.
	Upgrades        uint64 // Successful Upgrade calls.
	UpgradesFailed  uint64 // Upgrade calls on an expired lineage.
	WritesDenied    uint64 // TryLockWrite calls refused because of sharing.
	LineagesDropped uint64 // Lineages whose last handle was released.
	ValuesDropped   uint64 // Values whose last lineage was released.
}

// LiveValues returns the number of values created and not yet dropped.
func (s Stats) LiveValues() uint64 {
	return s.Created - s.ValuesDropped
}

// LiveLineages returns the number of lineages created and not yet dropped.
func (s Stats) LiveLineages() uint64 {
	return s.Created + s.Clones - s.LineagesDropped
}

var stats struct {
	created         atomic.Uint64
	clones          atomic.Uint64
	shallowClones   atomic.Uint64
	downgrades      atomic.Uint64
	upgrades        atomic.Uint64
	upgradesFailed  atomic.Uint64
	writesDenied    atomic.Uint64
	lineagesDropped atomic.Uint64
	valuesDropped   atomic.Uint64
}

// ReadStats returns the current counters.
func ReadStats() Stats {
	return Stats{
		Created:         stats.created.Load(),
		Clones:          stats.clones.Load(),
		ShallowClones:   stats.shallowClones.Load(),
		Downgrades:      stats.downgrades.Load(),
		Upgrades:        stats.upgrades.Load(),
		UpgradesFailed:  stats.upgradesFailed.Load(),
		WritesDenied:    stats.writesDenied.Load(),
		LineagesDropped: stats.lineagesDropped.Load(),
		ValuesDropped:   stats.valuesDropped.Load(),
	}
}

// ResetStats zeroes every counter.
//
// Thread Safety: counters bumped concurrently with ResetStats may be lost.
// Intended for tests and between stress runs.
func ResetStats() {
	stats.created.Store(0)
	stats.clones.Store(0)
	stats.shallowClones.Store(0)
	stats.downgrades.Store(0)
	stats.upgrades.Store(0)
	stats.upgradesFailed.Store(0)
	stats.writesDenied.Store(0)
	stats.lineagesDropped.Store(0)
	stats.valuesDropped.Store(0)
}
