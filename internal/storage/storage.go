package storage

import (
	"context"
	"io"

	"github.com/kdimtricp/detectsnap/internal/models"
)

// RecordStore persists committed detection records. Records are
// append-only: there is no update or delete.
type RecordStore interface {
	// Initialize prepares the backing location. Safe to call on every startup.
	Initialize(ctx context.Context) error
	// List returns every readable record in storage order. Unreadable
	// entries are skipped.
	List(ctx context.Context) ([]models.Record, error)
	// Save persists a record under its id.
	Save(ctx context.Context, record *models.Record) error
}

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Images keeps captured image bytes for the capture bridge. The pipeline
// itself only ever sees the returned reference.
type Images interface {
	SaveImage(r io.Reader, info FileInfo) (string, error)
	OpenImage(name string) (io.ReadSeekCloser, error)
	Path(name string) (string, error)
}
