package goals

// Goal holds a user's daily nutrient targets. Zero means no target set
// for that field; progress against an unset target is reported as zero
// rather than dividing by nothing.
type Goal struct {
	UserID           string  `gorm:"column:user_id;primaryKey;size:190;not null" json:"-"`
	Calories         float64 `gorm:"column:calories_kcal;not null;default:0" json:"calories_kcal"`
	Protein          float64 `gorm:"column:protein_g;not null;default:0" json:"protein_g"`
	Carbs            float64 `gorm:"column:carbs_g;not null;default:0" json:"carbs_g"`
	Fat              float64 `gorm:"column:fat_g;not null;default:0" json:"fat_g"`
	Fiber            float64 `gorm:"column:fiber_g;not null;default:0" json:"fiber_g"`
	Sugar            float64 `gorm:"column:sugar_g;not null;default:0" json:"sugar_g"`
	Sodium           float64 `gorm:"column:sodium_mg;not null;default:0" json:"sodium_mg"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Goal) TableName() string {
	return "daily_goals"
}

// FieldProgress pairs consumed against target for one nutrient.
type FieldProgress struct {
	Consumed float64 `json:"consumed"`
	Target   float64 `json:"target"`
	Fraction float64 `json:"fraction"`
}

// Progress is the day-level goal report rendered above the food log.
type Progress struct {
	Calories FieldProgress `json:"calories"`
	Protein  FieldProgress `json:"protein"`
	Carbs    FieldProgress `json:"carbs"`
	Fat      FieldProgress `json:"fat"`
	Fiber    FieldProgress `json:"fiber"`
	Sugar    FieldProgress `json:"sugar"`
	Sodium   FieldProgress `json:"sodium"`
}
