package diary

import (
	"math"
	"reflect"
	"testing"
)

func entryWith(mealType string, calories, protein float64) Entry {
	return Entry{
		EntryID:   "e-" + mealType,
		EntryDate: "2026-08-20",
		MealType:  mealType,
		ItemName:  "item",
		Quantity:  1,
		Nutrients: Nutrients{Calories: calories, Protein: protein},
	}
}

func TestGroupEntriesByMealTypeScenario(t *testing.T) {
	entries := []Entry{
		entryWith("breakfast", 300, 20),
		entryWith("breakfast", 150, 5),
		entryWith("dinner", 500, 30),
	}

	grouped := GroupEntriesByMealType(entries, nil)
	totals := CalculateDailyTotals(entries, nil)

	if totals.Totals.Calories != 950 {
		t.Fatalf("expected 950 kcal, got %v", totals.Totals.Calories)
	}
	if totals.Totals.Protein != 55 {
		t.Fatalf("expected 55 g protein, got %v", totals.Totals.Protein)
	}
	breakfast, ok := grouped.Groups[MealTypeBreakfast]
	if !ok {
		t.Fatalf("expected breakfast group")
	}
	if breakfast.TotalCalories() != 450 {
		t.Fatalf("expected 450 kcal breakfast, got %v", breakfast.TotalCalories())
	}
	if len(breakfast.Entries) != 2 {
		t.Fatalf("expected 2 breakfast entries, got %d", len(breakfast.Entries))
	}
	dinner, ok := grouped.Groups[MealTypeDinner]
	if !ok {
		t.Fatalf("expected dinner group")
	}
	if dinner.TotalCalories() != 500 {
		t.Fatalf("expected 500 kcal dinner, got %v", dinner.TotalCalories())
	}
	if _, ok := grouped.Groups[MealTypeLunch]; ok {
		t.Fatalf("empty note-less lunch bucket should not be emitted")
	}
	wantOrder := []MealType{MealTypeBreakfast, MealTypeDinner}
	if !reflect.DeepEqual(grouped.Order, wantOrder) {
		t.Fatalf("unexpected bucket order: %v", grouped.Order)
	}
}

func TestCalculateDailyTotalsIsIdempotent(t *testing.T) {
	entries := []Entry{
		entryWith("lunch", 412.35, 17.2),
		entryWith("Late_Night", 88.8, 3.3),
	}
	meta := map[MealType]MealtypeMeta{
		MealTypeLunch: {EntryDate: "2026-08-20", MealType: "lunch", Note: "leftovers"},
	}

	first := CalculateDailyTotals(entries, meta)
	second := CalculateDailyTotals(entries, meta)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recomputation diverged: %#v vs %#v", first, second)
	}
}

func TestSumInvariantAcrossBuckets(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{name: "empty", entries: nil},
		{name: "single bucket", entries: []Entry{entryWith("dinner", 123.4, 1)}},
		{name: "every bucket", entries: []Entry{
			entryWith("breakfast", 101.1, 1),
			entryWith("lunch", 202.2, 2),
			entryWith("afternoon_snack", 303.3, 3),
			entryWith("dinner", 404.4, 4),
			entryWith("late_night", 55.5, 5),
		}},
		{name: "unknown meal type", entries: []Entry{
			entryWith("breakfast", 100, 1),
			entryWith("brunch", 250, 2),
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			grouped := GroupEntriesByMealType(tc.entries, nil)
			totals := CalculateDailyTotals(tc.entries, nil)

			var bucketSum float64
			for _, bucket := range grouped.Order {
				bucketSum += grouped.Groups[bucket].TotalCalories()
			}
			if math.Abs(bucketSum-totals.Totals.Calories) > 1e-9 {
				t.Fatalf("bucket sum %v != daily total %v", bucketSum, totals.Totals.Calories)
			}
		})
	}
}

func TestUnknownMealTypeLandsInUnmatchedBucket(t *testing.T) {
	entries := []Entry{
		entryWith("breakfast", 100, 1),
		entryWith("brunch", 250, 2),
	}

	grouped := GroupEntriesByMealType(entries, nil)
	unmatched, ok := grouped.Groups[MealTypeUnmatched]
	if !ok {
		t.Fatalf("expected unmatched bucket")
	}
	if len(unmatched.Entries) != 1 || unmatched.Entries[0].MealType != "brunch" {
		t.Fatalf("unexpected unmatched entries: %#v", unmatched.Entries)
	}
	if grouped.Order[len(grouped.Order)-1] != MealTypeUnmatched {
		t.Fatalf("unmatched bucket must render last, got order %v", grouped.Order)
	}
}

func TestNullNutrientsContributeZero(t *testing.T) {
	entry := Entry{
		EntryID:   "e-1",
		EntryDate: "2026-08-20",
		MealType:  "breakfast",
		ItemName:  "mystery",
		Quantity:  1,
		Nutrients: NutrientInput{}.Normalize(),
	}

	totals := CalculateDailyTotals([]Entry{entry}, nil)
	if totals.Totals != (Nutrients{}) {
		t.Fatalf("all-null entry should contribute zero, got %#v", totals.Totals)
	}
	if totals.EntryCount != 1 {
		t.Fatalf("entry should still be counted, got %d", totals.EntryCount)
	}
}

func TestNoteOnlyBucketIsRetained(t *testing.T) {
	meta := map[MealType]MealtypeMeta{
		MealTypeDinner: {EntryDate: "2026-08-20", MealType: "dinner", Note: "fasted"},
	}

	grouped := GroupEntriesByMealType(nil, meta)
	dinner, ok := grouped.Groups[MealTypeDinner]
	if !ok {
		t.Fatalf("dinner bucket with a note must be retained")
	}
	if len(dinner.Entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(dinner.Entries))
	}
	if dinner.TotalCalories() != 0 {
		t.Fatalf("expected 0 kcal, got %v", dinner.TotalCalories())
	}
	if dinner.Note != "fasted" {
		t.Fatalf("expected note to surface, got %q", dinner.Note)
	}
}

func TestWhitespaceNoteDoesNotRetainBucket(t *testing.T) {
	meta := map[MealType]MealtypeMeta{
		MealTypeLunch: {EntryDate: "2026-08-20", MealType: "lunch", Note: "   "},
	}

	grouped := GroupEntriesByMealType(nil, meta)
	if _, ok := grouped.Groups[MealTypeLunch]; ok {
		t.Fatalf("whitespace-only note must not retain the bucket")
	}
}

func TestClassificationIsCaseInsensitive(t *testing.T) {
	upper := GroupEntriesByMealType([]Entry{entryWith("Breakfast", 200, 10)}, nil)
	lower := GroupEntriesByMealType([]Entry{entryWith("breakfast", 200, 10)}, nil)

	upperGroup := upper.Groups[MealTypeBreakfast]
	lowerGroup := lower.Groups[MealTypeBreakfast]
	if upperGroup.TotalCalories() != lowerGroup.TotalCalories() {
		t.Fatalf("case variants must classify identically")
	}
	if len(upperGroup.Entries) != 1 {
		t.Fatalf("expected Breakfast entry to classify into breakfast bucket")
	}
}

func TestDisplayRounding(t *testing.T) {
	tests := []struct {
		name string
		in   Nutrients
		want DisplayNutrients
	}{
		{
			name: "calories to nearest integer",
			in:   Nutrients{Calories: 949.5},
			want: DisplayNutrients{Calories: 950},
		},
		{
			name: "grams to one decimal",
			in:   Nutrients{Protein: 17.24, Fat: 9.96},
			want: DisplayNutrients{Protein: 17.2, Fat: 10.0},
		},
		{
			name: "trace trans fat rounds up",
			in:   Nutrients{TransFat: 0.04},
			want: DisplayNutrients{TransFat: 0.1},
		},
		{
			name: "exact trans fat multiple is untouched",
			in:   Nutrients{TransFat: 0.3},
			want: DisplayNutrients{TransFat: 0.3},
		},
		{
			name: "sodium to nearest integer",
			in:   Nutrients{Sodium: 211.6},
			want: DisplayNutrients{Sodium: 212},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Display()
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestCeilTenth(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{-0.2, 0},
		{0.04, 0.1},
		{0.1, 0.1},
		{0.11, 0.2},
		{0.29, 0.3},
		{1.01, 1.1},
	}
	for _, tc := range tests {
		if got := CeilTenth(tc.in); got != tc.want {
			t.Fatalf("CeilTenth(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
