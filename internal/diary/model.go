package diary

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxIdentifierLength = 190
	maxItemNameLength   = 320
	dateKeyLayout       = "2006-01-02"
)

var (
	// ErrInvalidDateKey indicates that a calendar day key is not YYYY-MM-DD.
	ErrInvalidDateKey = errors.New("diary: invalid date key")
	// ErrInvalidEntryID indicates that an entry identifier is empty or exceeds storage bounds.
	ErrInvalidEntryID = errors.New("diary: invalid entry id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("diary: invalid user id")
	// ErrInvalidItemName indicates that a logged item has no usable name.
	ErrInvalidItemName = errors.New("diary: invalid item name")
	// ErrInvalidQuantity indicates that a logged quantity is not positive.
	ErrInvalidQuantity = errors.New("diary: invalid quantity")
)

// DateKey represents a validated local calendar day in YYYY-MM-DD form.
// It is a day label, never a timestamp: two users in different timezones
// logging "2026-08-29" land on the same key.
type DateKey string

// NewDateKey validates raw input and returns a DateKey.
func NewDateKey(rawInput string) (DateKey, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDateKey)
	}
	parsed, err := time.Parse(dateKeyLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, trimmed)
	}
	return DateKey(parsed.Format(dateKeyLayout)), nil
}

// String returns the underlying day key.
func (k DateKey) String() string {
	return string(k)
}

// EntryID represents a validated diary entry identifier.
type EntryID string

// NewEntryID validates raw input and returns an EntryID.
func NewEntryID(rawInput string) (EntryID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEntryID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidEntryID, maxIdentifierLength)
	}
	return EntryID(trimmed), nil
}

// String returns the underlying string identifier.
func (id EntryID) String() string {
	return string(id)
}

// Nutrients carries the per-entry nutrient amounts used by aggregation.
// Values are raw sums in their display units (kcal, grams, milligrams);
// rounding is a render-time concern, never applied here.
type Nutrients struct {
	Calories     float64 `gorm:"column:calories_kcal;not null;default:0" json:"calories_kcal"`
	Protein      float64 `gorm:"column:protein_g;not null;default:0" json:"protein_g"`
	Carbs        float64 `gorm:"column:carbs_g;not null;default:0" json:"carbs_g"`
	Fat          float64 `gorm:"column:fat_g;not null;default:0" json:"fat_g"`
	Fiber        float64 `gorm:"column:fiber_g;not null;default:0" json:"fiber_g"`
	SaturatedFat float64 `gorm:"column:sat_fat_g;not null;default:0" json:"sat_fat_g"`
	TransFat     float64 `gorm:"column:trans_fat_g;not null;default:0" json:"trans_fat_g"`
	Sugar        float64 `gorm:"column:sugar_g;not null;default:0" json:"sugar_g"`
	Sodium       float64 `gorm:"column:sodium_mg;not null;default:0" json:"sodium_mg"`
}

// Add accumulates the other nutrient amounts into the receiver.
func (n *Nutrients) Add(other Nutrients) {
	n.Calories += other.Calories
	n.Protein += other.Protein
	n.Carbs += other.Carbs
	n.Fat += other.Fat
	n.Fiber += other.Fiber
	n.SaturatedFat += other.SaturatedFat
	n.TransFat += other.TransFat
	n.Sugar += other.Sugar
	n.Sodium += other.Sodium
}

// NutrientInput is the ingestion-side shape where every field may be
// absent. Normalization to zero happens exactly once, here at the
// boundary, so the aggregator can assume non-null numerics.
type NutrientInput struct {
	Calories     *float64 `json:"calories_kcal"`
	Protein      *float64 `json:"protein_g"`
	Carbs        *float64 `json:"carbs_g"`
	Fat          *float64 `json:"fat_g"`
	Fiber        *float64 `json:"fiber_g"`
	SaturatedFat *float64 `json:"sat_fat_g"`
	TransFat     *float64 `json:"trans_fat_g"`
	Sugar        *float64 `json:"sugar_g"`
	Sodium       *float64 `json:"sodium_mg"`
}

// Normalize fills absent fields with explicit zeros.
func (in NutrientInput) Normalize() Nutrients {
	return Nutrients{
		Calories:     orZero(in.Calories),
		Protein:      orZero(in.Protein),
		Carbs:        orZero(in.Carbs),
		Fat:          orZero(in.Fat),
		Fiber:        orZero(in.Fiber),
		SaturatedFat: orZero(in.SaturatedFat),
		TransFat:     orZero(in.TransFat),
		Sugar:        orZero(in.Sugar),
		Sodium:       orZero(in.Sodium),
	}
}

func orZero(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

// Entry models one logged food item for a calendar day.
type Entry struct {
	UserID           string    `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_entries_user_date,priority:1" json:"-"`
	EntryID          string    `gorm:"column:entry_id;primaryKey;size:190;not null" json:"entry_id"`
	EntryDate        string    `gorm:"column:entry_date;size:10;not null;index:idx_entries_user_date,priority:2" json:"entry_date"`
	MealType         string    `gorm:"column:meal_type;size:64;not null" json:"meal_type"`
	FoodID           *string   `gorm:"column:food_id;size:190" json:"food_id"`
	ItemName         string    `gorm:"column:item_name;size:320;not null" json:"item_name"`
	Quantity         float64   `gorm:"column:quantity;not null;default:0" json:"quantity"`
	Unit             string    `gorm:"column:unit;size:64;not null;default:''" json:"unit"`
	Nutrients        Nutrients `gorm:"embedded" json:"nutrients"`
	CreatedAtSeconds int64     `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64     `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "diary_entries"
}

// IsManual reports whether the entry was typed in by hand rather than
// picked from the food catalog.
func (e Entry) IsManual() bool {
	return e.FoodID == nil || strings.TrimSpace(*e.FoodID) == ""
}

// MealtypeMeta annotates one (day, meal type) cell with a note. A row
// may exist with a non-empty note even when the cell has zero entries;
// grouping must still surface such cells.
type MealtypeMeta struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null" json:"-"`
	EntryDate        string `gorm:"column:entry_date;primaryKey;size:10;not null" json:"entry_date"`
	MealType         string `gorm:"column:meal_type;primaryKey;size:64;not null" json:"meal_type"`
	Note             string `gorm:"column:note;type:text;not null;default:''" json:"note"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (MealtypeMeta) TableName() string {
	return "mealtype_meta"
}

// HasNote reports whether the annotation carries visible text.
func (m MealtypeMeta) HasNote() bool {
	return strings.TrimSpace(m.Note) != ""
}
