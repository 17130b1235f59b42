package transfer

import (
	"github.com/daylogapp/daylog/internal/diary"
)

// Eligibility is the outcome of the client-side "anything to copy?"
// check that runs before spending a round trip on the backend.
type Eligibility int

const (
	// EligibilityUnknown means at least one cache was not loaded; the
	// check is inconclusive and the remote call must proceed. A missing
	// cache must never silently skip a legitimate copy.
	EligibilityUnknown Eligibility = iota
	// EligibilityNothingToCopy means both caches were loaded and the
	// source cell holds neither entries nor a non-empty note.
	EligibilityNothingToCopy
	// EligibilityHasContent means the source cell has something to copy.
	EligibilityHasContent
)

// DaySnapshot is a cached read-side view of one user day. Nil slices
// are meaningful: they are distinguished from "loaded but empty" by the
// Loaded flags, mirroring a query cache that may hold either list
// independently.
type DaySnapshot struct {
	EntriesLoaded bool
	Entries       []diary.Entry
	MetaLoaded    bool
	Meta          []diary.MealtypeMeta
}

// CheckSource decides whether the source (date, meal type) cell has
// anything to transfer, using only the snapshot. Pure function: it
// never fetches and never mutates the snapshot.
func CheckSource(snapshot DaySnapshot, date diary.DateKey, mealType string) Eligibility {
	if !snapshot.EntriesLoaded || !snapshot.MetaLoaded {
		return EligibilityUnknown
	}

	for _, entry := range snapshot.Entries {
		if entry.EntryDate == date.String() && diary.SameMealType(entry.MealType, mealType) {
			return EligibilityHasContent
		}
	}
	for _, meta := range snapshot.Meta {
		if meta.EntryDate == date.String() && diary.SameMealType(meta.MealType, mealType) && meta.HasNote() {
			return EligibilityHasContent
		}
	}
	return EligibilityNothingToCopy
}
