package goals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daylogapp/daylog/internal/diary"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew = "goals.service.new"
	opGetGoal    = "goals.get_goal"
	opSetGoal    = "goals.set_goal"
)

// ServiceError carries a dotted operation.reason code alongside the
// underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the goals service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service stores per-user daily targets and reports progress.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the goals service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// GetGoal loads the user's targets. A user without a stored goal gets
// the zero goal, never an error.
func (s *Service) GetGoal(ctx context.Context, userID string) (Goal, error) {
	if userID == "" {
		return Goal{}, newServiceError(opGetGoal, "missing_user_id", errMissingUserID)
	}

	var goal Goal
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Goal{UserID: userID}, nil
	}
	if err != nil {
		s.logger.Error("goals service error",
			zap.String("operation", opGetGoal),
			zap.String("reason", "query_failed"),
			zap.Error(err),
			zap.String("user_id", userID))
		return Goal{}, newServiceError(opGetGoal, "query_failed", err)
	}
	return goal, nil
}

// SetGoal upserts the user's targets.
func (s *Service) SetGoal(ctx context.Context, userID string, goal Goal) (Goal, error) {
	if userID == "" {
		return Goal{}, newServiceError(opSetGoal, "missing_user_id", errMissingUserID)
	}

	goal.UserID = userID
	goal.UpdatedAtSeconds = s.clock().UTC().Unix()
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&goal).Error; err != nil {
		s.logger.Error("goals service error",
			zap.String("operation", opSetGoal),
			zap.String("reason", "upsert_failed"),
			zap.Error(err),
			zap.String("user_id", userID))
		return Goal{}, newServiceError(opSetGoal, "upsert_failed", err)
	}
	return goal, nil
}

// ComputeProgress reports consumed-versus-target per nutrient. The
// fraction is clamped to [0, 1]; fields without a positive target read
// as zero fraction.
func ComputeProgress(goal Goal, totals diary.DailyTotals) Progress {
	return Progress{
		Calories: fieldProgress(totals.Totals.Calories, goal.Calories),
		Protein:  fieldProgress(totals.Totals.Protein, goal.Protein),
		Carbs:    fieldProgress(totals.Totals.Carbs, goal.Carbs),
		Fat:      fieldProgress(totals.Totals.Fat, goal.Fat),
		Fiber:    fieldProgress(totals.Totals.Fiber, goal.Fiber),
		Sugar:    fieldProgress(totals.Totals.Sugar, goal.Sugar),
		Sodium:   fieldProgress(totals.Totals.Sodium, goal.Sodium),
	}
}

func fieldProgress(consumed, target float64) FieldProgress {
	progress := FieldProgress{Consumed: consumed, Target: target}
	if target <= 0 {
		return progress
	}
	fraction := consumed / target
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}
	progress.Fraction = fraction
	return progress
}
