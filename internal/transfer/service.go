package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/daylogapp/daylog/internal/diary"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Wire tokens surfaced to clients. Known rejections map to specific
// user copy; anything else falls back to a generic failure message.
const (
	TokenSameDate      = "SAME_DATE"
	TokenNothingToCopy = "NOTHING_TO_COPY"
)

var (
	// ErrSameCell rejects a transfer whose source and target cell are
	// identical (exact date key, case-insensitive meal type).
	ErrSameCell = errors.New(TokenSameDate)
	// ErrNothingToCopy reports that the source cell holds no entries
	// and no non-empty note. A no-op, not a failure.
	ErrNothingToCopy = errors.New(TokenNothingToCopy)

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
)

// Mode selects whether the source cell survives the transfer.
type Mode string

const (
	ModeCopy Mode = "copy"
	ModeMove Mode = "move"
)

// NotesMode selects what happens to the source note. Binary choice;
// there is no merge/append mode.
type NotesMode string

const (
	// NotesModeOverride copies the source note verbatim, replacing any
	// note already on the target cell.
	NotesModeOverride NotesMode = "override"
	// NotesModeExclude never copies the note.
	NotesModeExclude NotesMode = "exclude"
)

// ErrInvalidMode indicates an unrecognized transfer or notes mode.
var ErrInvalidMode = errors.New("transfer: invalid mode")

// ParseMode resolves a raw mode value.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeCopy):
		return ModeCopy, nil
	case string(ModeMove):
		return ModeMove, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

// ParseNotesMode resolves a raw notes mode value.
func ParseNotesMode(raw string) (NotesMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(NotesModeOverride):
		return NotesModeOverride, nil
	case string(NotesModeExclude):
		return NotesModeExclude, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

// Request names the source and target cells and the transfer policy.
type Request struct {
	SourceDate     diary.DateKey
	SourceMealType string
	TargetDate     diary.DateKey
	TargetMealType string
	Mode           Mode
	NotesMode      NotesMode
}

// SameCell reports whether source and target name the same cell.
func (r Request) SameCell() bool {
	return r.SourceDate == r.TargetDate && diary.SameMealType(r.SourceMealType, r.TargetMealType)
}

// Result is what the client renders after a transfer. The displayed
// item count is EntriesCloned plus one when NotesCopied.
type Result struct {
	EntriesCloned int  `json:"entries_cloned"`
	NotesCopied   bool `json:"notes_copied"`
}

// DisplayCount returns the total item count shown to the user.
func (r Result) DisplayCount() int {
	if r.NotesCopied {
		return r.EntriesCloned + 1
	}
	return r.EntriesCloned
}

const (
	opServiceNew = "transfer.service.new"
	opExecute    = "transfer.execute"
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

// ServiceConfig describes the dependencies of the transfer service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider diary.IDProvider
	Cache      *SnapshotCache
	Logger     *zap.Logger
}

// Service executes copy/move of one (date, meal type) cell to another.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider diary.IDProvider
	cache      *SnapshotCache
	logger     *zap.Logger
}

// NewService constructs the transfer service. The cache is optional;
// without one every transfer goes straight to the database.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		cache:      cfg.Cache,
		logger:     logger,
	}, nil
}

// Execute runs one transfer. Validation rejections (ErrSameCell,
// ErrNothingToCopy) happen before any row is written; everything else
// runs in a single transaction so a failed move never half-deletes the
// source cell.
func (s *Service) Execute(ctx context.Context, userID string, request Request) (Result, error) {
	if userID == "" {
		s.logError(opExecute, "missing_user_id", errMissingUserID)
		return Result{}, newServiceError(opExecute, "missing_user_id", errMissingUserID)
	}
	if request.SameCell() {
		return Result{}, ErrSameCell
	}
	if request.Mode != ModeCopy && request.Mode != ModeMove {
		return Result{}, newServiceError(opExecute, "invalid_mode", fmt.Errorf("%w: %q", ErrInvalidMode, request.Mode))
	}
	if request.NotesMode != NotesModeOverride && request.NotesMode != NotesModeExclude {
		return Result{}, newServiceError(opExecute, "invalid_notes_mode", fmt.Errorf("%w: %q", ErrInvalidMode, request.NotesMode))
	}

	// Cached short-circuit. Inconclusive caches fall through to the
	// database; a stale or missing cache must never skip a real copy.
	if s.cache != nil {
		if snapshot, ok := s.cache.Load(userID, request.SourceDate); ok {
			if CheckSource(snapshot, request.SourceDate, request.SourceMealType) == EligibilityNothingToCopy {
				return Result{}, ErrNothingToCopy
			}
		}
	}

	sourceMealType := diary.NormalizeMealType(request.SourceMealType).String()
	targetMealType := diary.NormalizeMealType(request.TargetMealType).String()

	var result Result
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sourceEntries []diary.Entry
		if err := tx.
			Where("user_id = ? AND entry_date = ? AND meal_type = ?", userID, request.SourceDate.String(), sourceMealType).
			Order("created_at_s ASC, entry_id ASC").
			Find(&sourceEntries).Error; err != nil {
			s.logError(opExecute, "source_query_failed", err, zap.String("user_id", userID))
			return newServiceError(opExecute, "source_query_failed", err)
		}

		var sourceMeta diary.MealtypeMeta
		sourceHasNote := false
		err := tx.
			Where("user_id = ? AND entry_date = ? AND meal_type = ?", userID, request.SourceDate.String(), sourceMealType).
			Take(&sourceMeta).Error
		if err == nil {
			sourceHasNote = sourceMeta.HasNote()
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logError(opExecute, "source_meta_query_failed", err, zap.String("user_id", userID))
			return newServiceError(opExecute, "source_meta_query_failed", err)
		}

		if len(sourceEntries) == 0 && !sourceHasNote {
			return ErrNothingToCopy
		}

		now := s.clock().UTC().Unix()
		for _, source := range sourceEntries {
			entryID, err := s.idProvider.NewID()
			if err != nil {
				s.logError(opExecute, "id_generation_failed", err, zap.String("user_id", userID))
				return newServiceError(opExecute, "id_generation_failed", err)
			}
			clone := source
			clone.EntryID = entryID
			clone.EntryDate = request.TargetDate.String()
			clone.MealType = targetMealType
			clone.CreatedAtSeconds = now
			clone.UpdatedAtSeconds = now
			if err := tx.Create(&clone).Error; err != nil {
				s.logError(opExecute, "clone_insert_failed", err, zap.String("user_id", userID), zap.String("entry_id", entryID))
				return newServiceError(opExecute, "clone_insert_failed", err)
			}
			result.EntriesCloned++
		}

		if request.NotesMode == NotesModeOverride && sourceHasNote {
			targetMeta := diary.MealtypeMeta{
				UserID:           userID,
				EntryDate:        request.TargetDate.String(),
				MealType:         targetMealType,
				Note:             sourceMeta.Note,
				UpdatedAtSeconds: now,
			}
			if err := tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_id"}, {Name: "entry_date"}, {Name: "meal_type"}},
					DoUpdates: clause.AssignmentColumns([]string{"note", "updated_at_s"}),
				}).
				Create(&targetMeta).Error; err != nil {
				s.logError(opExecute, "note_copy_failed", err, zap.String("user_id", userID))
				return newServiceError(opExecute, "note_copy_failed", err)
			}
			result.NotesCopied = true
		}

		if request.Mode == ModeMove {
			if err := tx.
				Where("user_id = ? AND entry_date = ? AND meal_type = ?", userID, request.SourceDate.String(), sourceMealType).
				Delete(&diary.Entry{}).Error; err != nil {
				s.logError(opExecute, "source_delete_failed", err, zap.String("user_id", userID))
				return newServiceError(opExecute, "source_delete_failed", err)
			}
			// The note travels with the entries only when it was copied;
			// under exclude it stays on the source cell.
			if result.NotesCopied {
				if err := tx.
					Where("user_id = ? AND entry_date = ? AND meal_type = ?", userID, request.SourceDate.String(), sourceMealType).
					Delete(&diary.MealtypeMeta{}).Error; err != nil {
					s.logError(opExecute, "source_note_delete_failed", err, zap.String("user_id", userID))
					return newServiceError(opExecute, "source_note_delete_failed", err)
				}
			}
		}

		return nil
	})
	if txErr != nil {
		return Result{}, txErr
	}

	if s.cache != nil {
		s.cache.Invalidate(userID, request.SourceDate)
		s.cache.Invalidate(userID, request.TargetDate)
	}

	return result, nil
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
	s.loggerOrDefault().Error("transfer service error", attrs...)
}
