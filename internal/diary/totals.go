package diary

import "math"

// MealGroup is one rendered bucket of the daily log: the entries that
// classified into it, their unrounded nutrient sums, and the optional
// meal note overlay.
type MealGroup struct {
	MealType MealType  `json:"meal_type"`
	Entries  []Entry   `json:"entries"`
	Totals   Nutrients `json:"totals"`
	Note     string    `json:"note,omitempty"`
}

// TotalCalories returns the bucket's unrounded calorie sum.
func (g MealGroup) TotalCalories() float64 {
	return g.Totals.Calories
}

// GroupedEntries maps meal types to their groups. Order carries the
// bucket identifiers in canonical display order; only buckets with at
// least one entry or a non-empty note appear.
type GroupedEntries struct {
	Order  []MealType             `json:"order"`
	Groups map[MealType]MealGroup `json:"groups"`
}

// DailyTotals is the derived day-level aggregate. Sums are unrounded;
// apply Display() at render time.
type DailyTotals struct {
	Totals     Nutrients `json:"totals"`
	EntryCount int       `json:"entry_count"`
}

// GroupEntriesByMealType buckets entries by canonical meal type and
// overlays meal notes. It is pure: a single pass over the input, no
// mutation of the entries, and the same output for the same input
// regardless of entry order. Entries that match no canonical bucket
// land in MealTypeUnmatched, appended after the canonical buckets, so
// the day total always equals the sum of emitted bucket totals.
func GroupEntriesByMealType(entries []Entry, metaByType map[MealType]MealtypeMeta) GroupedEntries {
	accumulators := make(map[MealType]*MealGroup, len(canonicalMealTypes)+1)
	for _, bucket := range canonicalMealTypes {
		accumulators[bucket] = &MealGroup{MealType: bucket}
	}
	accumulators[MealTypeUnmatched] = &MealGroup{MealType: MealTypeUnmatched}

	for _, entry := range entries {
		bucket, _ := Classify(entry.MealType)
		group := accumulators[bucket]
		group.Entries = append(group.Entries, entry)
		group.Totals.Add(entry.Nutrients)
	}

	for mealType, meta := range metaByType {
		bucket, matched := Classify(mealType.String())
		if !matched {
			continue
		}
		if meta.HasNote() {
			accumulators[bucket].Note = meta.Note
		}
	}

	grouped := GroupedEntries{Groups: make(map[MealType]MealGroup)}
	emit := func(bucket MealType) {
		group := accumulators[bucket]
		if len(group.Entries) == 0 && group.Note == "" {
			return
		}
		grouped.Order = append(grouped.Order, bucket)
		grouped.Groups[bucket] = *group
	}
	for _, bucket := range canonicalMealTypes {
		emit(bucket)
	}
	emit(MealTypeUnmatched)

	return grouped
}

// CalculateDailyTotals sums nutrient fields across all entries for the
// day. The meta map is accepted for signature parity with grouping but
// never changes the sums; notes carry no nutrients. Never fails: the
// zero value of every nutrient field is already a valid amount.
func CalculateDailyTotals(entries []Entry, metaByType map[MealType]MealtypeMeta) DailyTotals {
	_ = metaByType

	totals := DailyTotals{EntryCount: len(entries)}
	for _, entry := range entries {
		totals.Totals.Add(entry.Nutrients)
	}
	return totals
}

// DisplayNutrients holds render-ready values: calories and sodium to
// the nearest integer, gram fields to one decimal. Trans fat is the one
// field rounded upward, so a trace amount never reads as zero.
type DisplayNutrients struct {
	Calories     int64   `json:"calories_kcal"`
	Protein      float64 `json:"protein_g"`
	Carbs        float64 `json:"carbs_g"`
	Fat          float64 `json:"fat_g"`
	Fiber        float64 `json:"fiber_g"`
	SaturatedFat float64 `json:"sat_fat_g"`
	TransFat     float64 `json:"trans_fat_g"`
	Sugar        float64 `json:"sugar_g"`
	Sodium       int64   `json:"sodium_mg"`
}

// Display converts unrounded sums into display values. Call it only at
// the rendering edge; accumulating rounded values compounds error as
// entries are added and removed.
func (n Nutrients) Display() DisplayNutrients {
	return DisplayNutrients{
		Calories:     int64(math.Round(n.Calories)),
		Protein:      RoundTenth(n.Protein),
		Carbs:        RoundTenth(n.Carbs),
		Fat:          RoundTenth(n.Fat),
		Fiber:        RoundTenth(n.Fiber),
		SaturatedFat: RoundTenth(n.SaturatedFat),
		TransFat:     CeilTenth(n.TransFat),
		Sugar:        RoundTenth(n.Sugar),
		Sodium:       int64(math.Round(n.Sodium)),
	}
}

// RoundTenth rounds to the nearest 0.1 gram.
func RoundTenth(value float64) float64 {
	return math.Round(value*10) / 10
}

// CeilTenth rounds up to the next 0.1 gram: 0.04 displays as 0.1, never
// 0.0. Exact multiples of 0.1 are left alone; the epsilon absorbs
// float64 representation drift just above a multiple.
func CeilTenth(value float64) float64 {
	if value <= 0 {
		return 0
	}
	return math.Ceil((value-1e-9)*10) / 10
}
