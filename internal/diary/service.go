package diary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
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

const (
	opServiceNew   = "diary.service.new"
	opListDay      = "diary.list_day"
	opAddEntry     = "diary.add_entry"
	opDeleteEntry  = "diary.delete_entry"
	opSaveMealNote = "diary.save_meal_note"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ErrEntryNotFound indicates the entry does not exist for the user.
var ErrEntryNotFound = errors.New("diary: entry not found")

// ServiceConfig describes the dependencies of the diary service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for newly created entries.
type IDProvider interface {
	NewID() (string, error)
}

// Service persists and reads the daily food log.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the diary service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Day is everything a client needs to render one calendar day.
type Day struct {
	Date    DateKey
	Entries []Entry
	Meta    []MealtypeMeta
}

// MetaByType returns the day's annotations keyed by normalized meal type.
func (d Day) MetaByType() map[MealType]MealtypeMeta {
	byType := make(map[MealType]MealtypeMeta, len(d.Meta))
	for _, meta := range d.Meta {
		byType[NormalizeMealType(meta.MealType)] = meta
	}
	return byType
}

// Grouped returns the day's entries bucketed by meal type with the note
// overlay applied.
func (d Day) Grouped() GroupedEntries {
	return GroupEntriesByMealType(d.Entries, d.MetaByType())
}

// Totals returns the day's unrounded nutrient sums.
func (d Day) Totals() DailyTotals {
	return CalculateDailyTotals(d.Entries, d.MetaByType())
}

// ListDay loads all entries and annotations for one user day.
func (s *Service) ListDay(ctx context.Context, userID string, date DateKey) (Day, error) {
	if userID == "" {
		s.logError(opListDay, "missing_user_id", errMissingUserID)
		return Day{}, newServiceError(opListDay, "missing_user_id", errMissingUserID)
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND entry_date = ?", userID, date.String()).
		Order("created_at_s ASC, entry_id ASC").
		Find(&entries).Error; err != nil {
		s.logError(opListDay, "entry_query_failed", err, zap.String("user_id", userID), zap.String("entry_date", date.String()))
		return Day{}, newServiceError(opListDay, "entry_query_failed", err)
	}

	var meta []MealtypeMeta
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND entry_date = ?", userID, date.String()).
		Find(&meta).Error; err != nil {
		s.logError(opListDay, "meta_query_failed", err, zap.String("user_id", userID), zap.String("entry_date", date.String()))
		return Day{}, newServiceError(opListDay, "meta_query_failed", err)
	}

	return Day{Date: date, Entries: entries, Meta: meta}, nil
}

// AddEntryRequest describes a new log line. Nutrients arrive nullable
// and are normalized to zeros before anything touches the database.
type AddEntryRequest struct {
	Date      DateKey
	MealType  string
	FoodID    *string
	ItemName  string
	Quantity  float64
	Unit      string
	Nutrients NutrientInput
}

func (r AddEntryRequest) validate() error {
	if strings.TrimSpace(r.ItemName) == "" {
		return ErrInvalidItemName
	}
	if len(strings.TrimSpace(r.ItemName)) > maxItemNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidItemName, maxItemNameLength)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, r.Quantity)
	}
	return nil
}

// AddEntry stores one logged item. The meal type is stored normalized;
// unknown values are kept verbatim and classified at read time.
func (s *Service) AddEntry(ctx context.Context, userID string, request AddEntryRequest) (Entry, error) {
	if userID == "" {
		s.logError(opAddEntry, "missing_user_id", errMissingUserID)
		return Entry{}, newServiceError(opAddEntry, "missing_user_id", errMissingUserID)
	}
	if err := request.validate(); err != nil {
		return Entry{}, newServiceError(opAddEntry, "invalid_request", err)
	}

	entryID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddEntry, "id_generation_failed", err, zap.String("user_id", userID))
		return Entry{}, newServiceError(opAddEntry, "id_generation_failed", err)
	}

	var foodID *string
	if request.FoodID != nil && strings.TrimSpace(*request.FoodID) != "" {
		trimmed := strings.TrimSpace(*request.FoodID)
		foodID = &trimmed
	}

	now := s.clock().UTC().Unix()
	entry := Entry{
		UserID:           userID,
		EntryID:          entryID,
		EntryDate:        request.Date.String(),
		MealType:         NormalizeMealType(request.MealType).String(),
		FoodID:           foodID,
		ItemName:         strings.TrimSpace(request.ItemName),
		Quantity:         request.Quantity,
		Unit:             strings.TrimSpace(request.Unit),
		Nutrients:        request.Nutrients.Normalize(),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logError(opAddEntry, "entry_insert_failed", err, zap.String("user_id", userID), zap.String("entry_id", entryID))
		return Entry{}, newServiceError(opAddEntry, "entry_insert_failed", err)
	}

	return entry, nil
}

// DeleteEntry removes one logged item owned by the user. The date is
// part of the key so a stale client can never delete across days.
func (s *Service) DeleteEntry(ctx context.Context, userID string, date DateKey, entryID EntryID) error {
	if userID == "" {
		s.logError(opDeleteEntry, "missing_user_id", errMissingUserID)
		return newServiceError(opDeleteEntry, "missing_user_id", errMissingUserID)
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND entry_date = ? AND entry_id = ?", userID, date.String(), entryID.String()).
		Delete(&Entry{})
	if result.Error != nil {
		s.logError(opDeleteEntry, "entry_delete_failed", result.Error, zap.String("user_id", userID), zap.String("entry_id", entryID.String()))
		return newServiceError(opDeleteEntry, "entry_delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeleteEntry, "not_found", ErrEntryNotFound)
	}
	return nil
}

// SaveMealNote upserts the note for one (day, meal type) cell. Saving
// an empty or whitespace-only note clears the annotation.
func (s *Service) SaveMealNote(ctx context.Context, userID string, date DateKey, mealType string, note string) error {
	if userID == "" {
		s.logError(opSaveMealNote, "missing_user_id", errMissingUserID)
		return newServiceError(opSaveMealNote, "missing_user_id", errMissingUserID)
	}

	normalized := NormalizeMealType(mealType).String()

	if strings.TrimSpace(note) == "" {
		if err := s.db.WithContext(ctx).
			Where("user_id = ? AND entry_date = ? AND meal_type = ?", userID, date.String(), normalized).
			Delete(&MealtypeMeta{}).Error; err != nil {
			s.logError(opSaveMealNote, "note_clear_failed", err, zap.String("user_id", userID), zap.String("entry_date", date.String()))
			return newServiceError(opSaveMealNote, "note_clear_failed", err)
		}
		return nil
	}

	meta := MealtypeMeta{
		UserID:           userID,
		EntryDate:        date.String(),
		MealType:         normalized,
		Note:             note,
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "entry_date"}, {Name: "meal_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"note", "updated_at_s"}),
		}).
		Create(&meta).Error; err != nil {
		s.logError(opSaveMealNote, "note_upsert_failed", err, zap.String("user_id", userID), zap.String("entry_date", date.String()))
		return newServiceError(opSaveMealNote, "note_upsert_failed", err)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("diary service error", attrs...)
}
