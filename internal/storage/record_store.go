package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/models"
)

// RecordFileExt is appended to a record id to form its file name.
const RecordFileExt = ".json"

// FileStore keeps one JSON file per record in a single directory. It assumes
// a single writer.
type FileStore struct {
	basePath string
	logger   *zap.SugaredLogger
}

func NewFileStore(basePath string, logger *zap.SugaredLogger) *FileStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileStore{basePath: basePath, logger: logger}
}

func (s *FileStore) Dir() string {
	return s.basePath
}

func (s *FileStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return &StorageInitError{Path: s.basePath, Err: err}
	}
	s.logger.Debugw("record store ready", "path", s.basePath)
	return nil
}

// List returns every parseable record. Entries that fail to parse are logged
// and skipped.
func (s *FileStore) List(ctx context.Context) ([]models.Record, error) {
	records, skipped, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range skipped {
		s.logger.Warnw("skipping unreadable record", "error", e)
	}
	return records, nil
}

// Scan is List without the logging. It also returns a StorageReadError for
// every skipped entry.
func (s *FileStore) Scan(ctx context.Context) ([]models.Record, []error, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read record directory %s", s.basePath)
	}

	records := make([]models.Record, 0, len(entries))
	var skipped error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}

		record, err := s.readRecord(entry.Name())
		if err != nil {
			skipped = multierr.Append(skipped, &StorageReadError{Entry: entry.Name(), Err: err})
			continue
		}
		records = append(records, *record)
	}

	return records, multierr.Errors(skipped), nil
}

func (s *FileStore) readRecord(name string) (*models.Record, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if err != nil {
		return nil, err
	}

	var record models.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	if record.ID == "" {
		return nil, errors.New("record has no id")
	}
	return &record, nil
}

// Save writes the record to <id>.json. An existing file with the same id is
// never overwritten.
func (s *FileStore) Save(ctx context.Context, record *models.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if strings.ContainsAny(record.ID, `/\`) || strings.Contains(record.ID, "..") {
		return &StorageWriteError{ID: record.ID, Err: errors.New("invalid record id")}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return &StorageWriteError{ID: record.ID, Err: err}
	}

	fullPath := filepath.Join(s.basePath, record.ID+RecordFileExt)
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return &StorageWriteError{ID: record.ID, Err: err}
	}

	_, err = f.Write(data)
	err = multierr.Append(err, f.Sync())
	err = multierr.Append(err, f.Close())
	if err != nil {
		os.Remove(fullPath)
		return &StorageWriteError{ID: record.ID, Err: err}
	}

	s.logger.Infow("record saved", "id", record.ID, "detections", len(record.Detections))
	return nil
}
