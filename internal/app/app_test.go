package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kdimtricp/detectsnap/internal/config"
	"github.com/kdimtricp/detectsnap/internal/database"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		expectErr bool
		check     func(t *testing.T, store storage.RecordStore)
	}{
		{
			name:    "file",
			backend: config.StoreBackendFile,
			check: func(t *testing.T, store storage.RecordStore) {
				if _, ok := store.(*storage.FileStore); !ok {
					t.Errorf("expected *storage.FileStore, got %T", store)
				}
			},
		},
		{
			name:    "sqlite",
			backend: config.StoreBackendSQLite,
			check: func(t *testing.T, store storage.RecordStore) {
				if _, ok := store.(*database.RecordRepository); !ok {
					t.Errorf("expected *database.RecordRepository, got %T", store)
				}
			},
		},
		{
			name:      "unknown",
			backend:   "postgres",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := &config.Config{
				StoreBackend:     tt.backend,
				RecordsDirectory: filepath.Join(dir, "records"),
				DBPath:           filepath.Join(dir, "test.db"),
			}

			store, closeStore, err := OpenStore(cfg, nil)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStore failed: %v", err)
			}
			defer closeStore()

			tt.check(t, store)
			if err := store.Initialize(context.Background()); err != nil {
				t.Fatalf("Initialize failed: %v", err)
			}
			records, err := store.List(context.Background())
			if err != nil || len(records) != 0 {
				t.Errorf("expected empty listing, got %v, %v", records, err)
			}
		})
	}
}

func TestNewDetector(t *testing.T) {
	if _, err := NewDetector(&config.Config{DetectorURL: "http://localhost:8000/detect"}, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewDetector(&config.Config{DetectorURL: "not a url"}, nil); err == nil {
		t.Error("expected error for invalid url")
	}
}
