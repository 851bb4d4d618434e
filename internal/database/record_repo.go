package database

import (
	"context"
	"encoding/json"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/models"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

// RecordRepository is a sqlite-backed storage.RecordStore. It keeps the same
// contract as the file store: append-only, no ordering, and rows that cannot
// be decoded are skipped.
type RecordRepository struct {
	db     *DB
	logger *zap.SugaredLogger
}

var _ storage.RecordStore = (*RecordRepository)(nil)

func NewRecordRepository(db *DB, logger *zap.SugaredLogger) *RecordRepository {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RecordRepository{db: db, logger: logger}
}

func (r *RecordRepository) Initialize(ctx context.Context) error {
	if err := r.db.createTables(ctx); err != nil {
		return &storage.StorageInitError{Path: r.db.path, Err: err}
	}
	return nil
}

func (r *RecordRepository) Save(ctx context.Context, record *models.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	detections, err := json.Marshal(record.Detections)
	if err != nil {
		return &storage.StorageWriteError{ID: record.ID, Err: err}
	}

	query := `INSERT INTO records (id, uri, detections, date) VALUES (?, ?, ?, ?)`
	if _, err := r.db.conn.ExecContext(ctx, query, record.ID, record.URI, string(detections), record.Date); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			err = errors.Wrap(err, "record id already exists")
		}
		return &storage.StorageWriteError{ID: record.ID, Err: err}
	}

	r.logger.Infow("record saved", "id", record.ID, "detections", len(record.Detections))
	return nil
}

func (r *RecordRepository) List(ctx context.Context) ([]models.Record, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT id, uri, detections, date FROM records`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var (
			record     models.Record
			detections string
		)
		if err := rows.Scan(&record.ID, &record.URI, &detections, &record.Date); err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}
		if err := json.Unmarshal([]byte(detections), &record.Detections); err != nil {
			r.logger.Warnw("skipping unreadable record", "error", &storage.StorageReadError{Entry: record.ID, Err: err})
			continue
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate records")
	}
	return records, nil
}

// Count returns the number of stored rows, readable or not.
func (r *RecordRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count records")
	}
	return n, nil
}
