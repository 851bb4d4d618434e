package database

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type DB struct {
	conn *sql.DB
	path string
}

type Config struct {
	SQLitePath string
}

func NewDB(config Config) (*DB, error) {
	if config.SQLitePath == "" {
		return nil, errors.New("sqlite path is required")
	}

	conn, err := sql.Open("sqlite3", config.SQLitePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// sqlite allows a single writer; the store assumes one anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{conn: conn, path: config.SQLitePath}, nil
}

func (db *DB) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		uri TEXT NOT NULL,
		detections TEXT NOT NULL,
		date TEXT NOT NULL
	);
	`

	_, err := db.conn.ExecContext(ctx, query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
