// Package app assembles the collaborators shared by the server and the CLI
// from a loaded configuration.
package app

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/ai"
	"github.com/kdimtricp/detectsnap/internal/config"
	"github.com/kdimtricp/detectsnap/internal/database"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

// OpenStore returns the record store selected by STORE_BACKEND and a func
// releasing it. The store is not initialized.
func OpenStore(cfg *config.Config, logger *zap.SugaredLogger) (storage.RecordStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendFile, "":
		return storage.NewFileStore(cfg.RecordsDirectory, logger), func() error { return nil }, nil
	case config.StoreBackendSQLite:
		db, err := database.NewDB(database.Config{SQLitePath: cfg.DBPath})
		if err != nil {
			return nil, nil, err
		}
		return database.NewRecordRepository(db, logger), db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func NewDetector(cfg *config.Config, logger *zap.SugaredLogger) (*ai.RemoteDetector, error) {
	aiConfig := ai.NewConfig(cfg.DetectorURL)
	aiConfig.Timeout = cfg.DetectorTimeout
	return ai.NewRemoteDetector(aiConfig, logger)
}
