package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/daylogapp/daylog/internal/diary"
)

func TestOpenSQLiteMigratesAndNormalizes(t *testing.T) {
	dsn := fmt.Sprintf("file:database_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := OpenSQLite(dsn, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// Simulate a legacy mixed-case row and re-run migrations by hand;
	// the ledger marks the migration applied, so invoke the fix directly.
	entry := diary.Entry{
		UserID:    "user-1",
		EntryID:   "e-1",
		EntryDate: "2026-08-19",
		MealType:  "Breakfast",
		ItemName:  "legacy",
		Quantity:  1,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}

	if err := normalizeMealTypes(db); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	var stored diary.Entry
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("failed to load entry: %v", err)
	}
	if stored.MealType != "breakfast" {
		t.Fatalf("expected normalized meal type, got %q", stored.MealType)
	}

	var applied int64
	if err := db.Model(&migrationRecord{}).Count(&applied).Error; err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if applied == 0 {
		t.Fatalf("expected migration ledger entries")
	}
}

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:database_idem_%d?mode=memory&cache=shared", time.Now().UnixNano())
	if _, err := OpenSQLite(dsn, nil); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if _, err := OpenSQLite(dsn, nil); err != nil {
		t.Fatalf("second open failed: %v", err)
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
