package transfer

import (
	"sync"

	"github.com/daylogapp/daylog/internal/diary"
)

// SnapshotCache holds read-side day snapshots keyed by (user, date).
// Reads happen on every eligibility check; writes happen only when a
// fetch or mutation completes, so the cache is a plain last-write-wins
// map with no versioning.
type SnapshotCache struct {
	snapshots sync.Map
}

// NewSnapshotCache constructs an empty cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

func snapshotKey(userID string, date diary.DateKey) string {
	return userID + "|" + date.String()
}

// Load returns the cached snapshot for the user day. The second return
// is false when the day has never been cached, which callers must treat
// as an inconclusive eligibility input.
func (c *SnapshotCache) Load(userID string, date diary.DateKey) (DaySnapshot, bool) {
	value, ok := c.snapshots.Load(snapshotKey(userID, date))
	if !ok {
		return DaySnapshot{}, false
	}
	snapshot, ok := value.(DaySnapshot)
	if !ok {
		return DaySnapshot{}, false
	}
	return snapshot, true
}

// Store replaces the snapshot for the user day.
func (c *SnapshotCache) Store(userID string, date diary.DateKey, snapshot DaySnapshot) {
	c.snapshots.Store(snapshotKey(userID, date), snapshot)
}

// StoreDay caches a freshly fetched day with both lists marked loaded.
func (c *SnapshotCache) StoreDay(userID string, day diary.Day) {
	c.Store(userID, day.Date, DaySnapshot{
		EntriesLoaded: true,
		Entries:       day.Entries,
		MetaLoaded:    true,
		Meta:          day.Meta,
	})
}

// Invalidate drops the snapshot for the user day. Called after any
// mutation that touches the day; the next fetch repopulates it.
func (c *SnapshotCache) Invalidate(userID string, date diary.DateKey) {
	c.snapshots.Delete(snapshotKey(userID, date))
}
