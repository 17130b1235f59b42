package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/daylogapp/daylog/internal/diary"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func newTestService(t *testing.T, ids []string, cache *SnapshotCache) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:transfer_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&diary.Entry{}, &diary.MealtypeMeta{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1766000600, 0).UTC() },
		IDProvider: &staticIDGenerator{ids: ids},
		Cache:      cache,
	})
	if err != nil {
		t.Fatalf("failed to construct transfer service: %v", err)
	}

	return service, db
}

func seedEntry(t *testing.T, db *gorm.DB, userID, date, mealType, entryID string, calories float64) {
	t.Helper()
	entry := diary.Entry{
		UserID:           userID,
		EntryID:          entryID,
		EntryDate:        date,
		MealType:         mealType,
		ItemName:         "seeded",
		Quantity:         1,
		Nutrients:        diary.Nutrients{Calories: calories},
		CreatedAtSeconds: 1766000000,
		UpdatedAtSeconds: 1766000000,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}
}

func seedNote(t *testing.T, db *gorm.DB, userID, date, mealType, note string) {
	t.Helper()
	meta := diary.MealtypeMeta{
		UserID:           userID,
		EntryDate:        date,
		MealType:         mealType,
		Note:             note,
		UpdatedAtSeconds: 1766000000,
	}
	if err := db.Create(&meta).Error; err != nil {
		t.Fatalf("failed to seed note: %v", err)
	}
}

func baseRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		SourceDate:     testDate(t, "2026-08-19"),
		SourceMealType: "breakfast",
		TargetDate:     testDate(t, "2026-08-20"),
		TargetMealType: "breakfast",
		Mode:           ModeCopy,
		NotesMode:      NotesModeOverride,
	}
}

func TestExecuteRejectsSameCell(t *testing.T) {
	service, db := newTestService(t, nil, nil)
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-1", 300)

	request := baseRequest(t)
	request.TargetDate = request.SourceDate
	request.TargetMealType = "Breakfast"

	_, err := service.Execute(context.Background(), "user-1", request)
	if !errors.Is(err, ErrSameCell) {
		t.Fatalf("expected ErrSameCell, got %v", err)
	}

	var count int64
	if err := db.Model(&diary.Entry{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if count != 1 {
		t.Fatalf("same-cell rejection must not touch rows, got %d", count)
	}
}

func TestExecuteNothingToCopy(t *testing.T) {
	service, _ := newTestService(t, nil, nil)

	_, err := service.Execute(context.Background(), "user-1", baseRequest(t))
	if !errors.Is(err, ErrNothingToCopy) {
		t.Fatalf("expected ErrNothingToCopy, got %v", err)
	}
}

func TestExecuteCopyClonesEntriesAndNote(t *testing.T) {
	service, db := newTestService(t, []string{"c-1", "c-2"}, nil)
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-1", 300)
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-2", 150)
	seedNote(t, db, "user-1", "2026-08-19", "breakfast", "slow morning")

	request := baseRequest(t)
	request.TargetMealType = "Lunch"

	result, err := service.Execute(context.Background(), "user-1", request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EntriesCloned != 2 || !result.NotesCopied {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.DisplayCount() != 3 {
		t.Fatalf("expected display count 3, got %d", result.DisplayCount())
	}

	var cloned []diary.Entry
	if err := db.Where("entry_date = ?", "2026-08-20").Find(&cloned).Error; err != nil {
		t.Fatalf("failed to load clones: %v", err)
	}
	if len(cloned) != 2 {
		t.Fatalf("expected 2 clones, got %d", len(cloned))
	}
	for _, clone := range cloned {
		if clone.MealType != "lunch" {
			t.Fatalf("clone must land on normalized target meal type, got %q", clone.MealType)
		}
		if clone.EntryID == "e-1" || clone.EntryID == "e-2" {
			t.Fatalf("clone must carry a fresh id, got %q", clone.EntryID)
		}
		if clone.CreatedAtSeconds != 1766000600 {
			t.Fatalf("clone must use the service clock, got %d", clone.CreatedAtSeconds)
		}
	}

	var sourceCount int64
	if err := db.Model(&diary.Entry{}).Where("entry_date = ?", "2026-08-19").Count(&sourceCount).Error; err != nil {
		t.Fatalf("failed to count source rows: %v", err)
	}
	if sourceCount != 2 {
		t.Fatalf("copy must retain source entries, got %d", sourceCount)
	}

	var targetMeta diary.MealtypeMeta
	if err := db.Where("entry_date = ? AND meal_type = ?", "2026-08-20", "lunch").Take(&targetMeta).Error; err != nil {
		t.Fatalf("failed to load target note: %v", err)
	}
	if targetMeta.Note != "slow morning" {
		t.Fatalf("note must copy verbatim, got %q", targetMeta.Note)
	}
}

func TestExecuteNotesModeExcludeNeverCopiesNote(t *testing.T) {
	service, db := newTestService(t, []string{"c-1"}, nil)
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-1", 300)
	seedNote(t, db, "user-1", "2026-08-19", "breakfast", "slow morning")

	request := baseRequest(t)
	request.NotesMode = NotesModeExclude

	result, err := service.Execute(context.Background(), "user-1", request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NotesCopied {
		t.Fatalf("exclude mode must never report a copied note")
	}
	if result.EntriesCloned != 1 {
		t.Fatalf("expected 1 clone, got %d", result.EntriesCloned)
	}

	var count int64
	if err := db.Model(&diary.MealtypeMeta{}).Where("entry_date = ?", "2026-08-20").Count(&count).Error; err != nil {
		t.Fatalf("failed to count target notes: %v", err)
	}
	if count != 0 {
		t.Fatalf("exclude mode must leave the target note absent, got %d rows", count)
	}
}

func TestExecuteNoteOnlySourceCopies(t *testing.T) {
	service, db := newTestService(t, nil, nil)
	seedNote(t, db, "user-1", "2026-08-19", "breakfast", "fasted")

	result, err := service.Execute(context.Background(), "user-1", baseRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EntriesCloned != 0 || !result.NotesCopied {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.DisplayCount() != 1 {
		t.Fatalf("expected display count 1, got %d", result.DisplayCount())
	}
}

func TestExecuteMoveDeletesSource(t *testing.T) {
	service, db := newTestService(t, []string{"c-1"}, nil)
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-1", 300)
	seedNote(t, db, "user-1", "2026-08-19", "breakfast", "slow morning")

	request := baseRequest(t)
	request.Mode = ModeMove

	result, err := service.Execute(context.Background(), "user-1", request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EntriesCloned != 1 || !result.NotesCopied {
		t.Fatalf("unexpected result: %#v", result)
	}

	var sourceEntries int64
	if err := db.Model(&diary.Entry{}).Where("entry_date = ?", "2026-08-19").Count(&sourceEntries).Error; err != nil {
		t.Fatalf("failed to count source entries: %v", err)
	}
	if sourceEntries != 0 {
		t.Fatalf("move must delete source entries, got %d", sourceEntries)
	}

	var sourceNotes int64
	if err := db.Model(&diary.MealtypeMeta{}).Where("entry_date = ?", "2026-08-19").Count(&sourceNotes).Error; err != nil {
		t.Fatalf("failed to count source notes: %v", err)
	}
	if sourceNotes != 0 {
		t.Fatalf("moved note must leave the source cell, got %d", sourceNotes)
	}
}

func TestExecuteMoveWithExcludeKeepsSourceNote(t *testing.T) {
	service, db := newTestService(t, []string{"c-1"}, nil)
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-1", 300)
	seedNote(t, db, "user-1", "2026-08-19", "breakfast", "slow morning")

	request := baseRequest(t)
	request.Mode = ModeMove
	request.NotesMode = NotesModeExclude

	if _, err := service.Execute(context.Background(), "user-1", request); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sourceNotes int64
	if err := db.Model(&diary.MealtypeMeta{}).Where("entry_date = ?", "2026-08-19").Count(&sourceNotes).Error; err != nil {
		t.Fatalf("failed to count source notes: %v", err)
	}
	if sourceNotes != 1 {
		t.Fatalf("excluded note must stay on the source cell, got %d", sourceNotes)
	}
}

func TestExecuteUsesCacheShortCircuit(t *testing.T) {
	cache := NewSnapshotCache()
	service, db := newTestService(t, []string{"c-1"}, cache)

	// Cache says the source cell is empty even though a row exists; the
	// short-circuit answers from the snapshot without a database read.
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-1", 300)
	cache.Store("user-1", testDate(t, "2026-08-19"), DaySnapshot{EntriesLoaded: true, MetaLoaded: true})

	_, err := service.Execute(context.Background(), "user-1", baseRequest(t))
	if !errors.Is(err, ErrNothingToCopy) {
		t.Fatalf("expected cached short-circuit, got %v", err)
	}
}

func TestExecuteInvalidatesBothDays(t *testing.T) {
	cache := NewSnapshotCache()
	service, db := newTestService(t, []string{"c-1"}, cache)
	seedEntry(t, db, "user-1", "2026-08-19", "breakfast", "e-1", 300)

	sourceDate := testDate(t, "2026-08-19")
	targetDate := testDate(t, "2026-08-20")
	cache.Store("user-1", sourceDate, DaySnapshot{
		EntriesLoaded: true,
		Entries:       []diary.Entry{{EntryID: "e-1", EntryDate: "2026-08-19", MealType: "breakfast"}},
		MetaLoaded:    true,
	})
	cache.Store("user-1", targetDate, DaySnapshot{EntriesLoaded: true, MetaLoaded: true})

	if _, err := service.Execute(context.Background(), "user-1", baseRequest(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.Load("user-1", sourceDate); ok {
		t.Fatalf("source day snapshot must be invalidated")
	}
	if _, ok := cache.Load("user-1", targetDate); ok {
		t.Fatalf("target day snapshot must be invalidated")
	}
}

func TestParseModes(t *testing.T) {
	if mode, err := ParseMode(" Copy "); err != nil || mode != ModeCopy {
		t.Fatalf("ParseMode copy failed: %v %v", mode, err)
	}
	if mode, err := ParseMode("move"); err != nil || mode != ModeMove {
		t.Fatalf("ParseMode move failed: %v %v", mode, err)
	}
	if _, err := ParseMode("merge"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}

	if mode, err := ParseNotesMode("OVERRIDE"); err != nil || mode != NotesModeOverride {
		t.Fatalf("ParseNotesMode override failed: %v %v", mode, err)
	}
	if mode, err := ParseNotesMode("exclude"); err != nil || mode != NotesModeExclude {
		t.Fatalf("ParseNotesMode exclude failed: %v %v", mode, err)
	}
	if _, err := ParseNotesMode("append"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}
