package diary

import "strings"

// MealType identifies one bucket of the daily log. Canonical values are
// lower-case; comparison against logged values is case-insensitive.
type MealType string

const (
	MealTypeBreakfast      MealType = "breakfast"
	MealTypeLunch          MealType = "lunch"
	MealTypeAfternoonSnack MealType = "afternoon_snack"
	MealTypeDinner         MealType = "dinner"
	MealTypeLateNight      MealType = "late_night"

	// MealTypeUnmatched collects entries whose meal_type matches no
	// canonical bucket. It renders after the canonical buckets so the
	// grand total always equals the sum of visible bucket totals.
	MealTypeUnmatched MealType = "unmatched"
)

// canonicalMealTypes is the single source of truth for both grouping
// and display order. Changing it changes both.
var canonicalMealTypes = []MealType{
	MealTypeBreakfast,
	MealTypeLunch,
	MealTypeAfternoonSnack,
	MealTypeDinner,
	MealTypeLateNight,
}

// CanonicalMealTypes returns the ordered bucket list. Callers receive a
// copy; the canonical order is immutable at runtime.
func CanonicalMealTypes() []MealType {
	out := make([]MealType, len(canonicalMealTypes))
	copy(out, canonicalMealTypes)
	return out
}

// String returns the underlying identifier.
func (m MealType) String() string {
	return string(m)
}

// Classify resolves a raw meal_type value to its canonical bucket.
// Matching is case-insensitive on the trimmed value. The second return
// is false when no canonical bucket matches; such entries belong to
// MealTypeUnmatched.
func Classify(rawMealType string) (MealType, bool) {
	normalized := NormalizeMealType(rawMealType)
	for _, bucket := range canonicalMealTypes {
		if normalized == bucket {
			return bucket, true
		}
	}
	return MealTypeUnmatched, false
}

// NormalizeMealType lower-cases and trims a raw meal_type value so that
// "Breakfast" and "breakfast" compare equal everywhere.
func NormalizeMealType(rawMealType string) MealType {
	return MealType(strings.ToLower(strings.TrimSpace(rawMealType)))
}

// SameMealType reports whether two raw meal_type values name the same
// bucket under case-insensitive comparison.
func SameMealType(left, right string) bool {
	return NormalizeMealType(left) == NormalizeMealType(right)
}
