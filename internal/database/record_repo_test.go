package database

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kdimtricp/detectsnap/internal/models"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

func setupTestDB(t *testing.T) (*RecordRepository, func()) {
	t.Helper()

	db, err := NewDB(Config{SQLitePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	repo := NewRecordRepository(db, nil)
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Failed to initialize repository: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return repo, cleanup
}

func newTestRecord(id string) *models.Record {
	return models.NewRecord(id, "file:///tmp/"+id+".jpg", []models.Detection{
		{Class: "person", Confidence: 0.88, BBox: []float64{10, 20, 30, 40}},
		{Class: "bicycle", Confidence: 0.51},
	}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestRecordRepository_SaveAndList(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("1704164645000")
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if !reflect.DeepEqual(&records[0], record) {
		t.Errorf("Round trip mismatch: expected %+v, got %+v", record, records[0])
	}
}

func TestRecordRepository_InitializeIsIdempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := repo.Save(ctx, newTestRecord("1")); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}
	if err := repo.Initialize(ctx); err != nil {
		t.Fatalf("Second Initialize failed: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected existing record to survive re-initialization, got %d rows", n)
	}
}

func TestRecordRepository_SaveRejects(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	empty := models.NewRecord("9", "file:///tmp/9.jpg", []models.Detection{}, time.Now())
	var precondition *models.PreconditionError
	if err := repo.Save(ctx, empty); !errors.As(err, &precondition) {
		t.Fatalf("Expected PreconditionError, got %v", err)
	}

	if err := repo.Save(ctx, newTestRecord("5")); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}
	var writeErr *storage.StorageWriteError
	if err := repo.Save(ctx, newTestRecord("5")); !errors.As(err, &writeErr) {
		t.Fatalf("Expected StorageWriteError for duplicate id, got %v", err)
	}
}

func TestRecordRepository_ListSkipsCorruptRows(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		if err := repo.Save(ctx, newTestRecord(id)); err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}
	}
	_, err := repo.db.Conn().ExecContext(ctx,
		`INSERT INTO records (id, uri, detections, date) VALUES ('3', 'file:///tmp/3.jpg', '{broken', '2024-01-01T00:00:00.000Z')`)
	if err != nil {
		t.Fatalf("Failed to insert corrupt row: %v", err)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 readable records, got %d", len(records))
	}
}
