package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DETECTOR_URL", "DETECTOR_TIMEOUT", "RECORDS_DIR", "STORE_BACKEND", "MAX_UPLOAD_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DetectorURL != "http://localhost:8000/detect" {
		t.Errorf("unexpected detector url %s", cfg.DetectorURL)
	}
	if cfg.DetectorTimeout != 0 {
		t.Errorf("expected no timeout by default, got %v", cfg.DetectorTimeout)
	}
	if cfg.StoreBackend != StoreBackendFile {
		t.Errorf("expected file backend, got %s", cfg.StoreBackend)
	}
	if cfg.MaxUploadSize != 20<<20 {
		t.Errorf("unexpected max upload size %d", cfg.MaxUploadSize)
	}
}

func TestLoadFromEnvAndFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "RECORDS_DIR=/data/records\nDETECTOR_TIMEOUT=15\nPORT=9000\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// godotenv does not override variables that are already set.
	t.Setenv("PORT", "7000")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("RECORDS_DIR", "")
	os.Unsetenv("RECORDS_DIR")
	t.Setenv("DETECTOR_TIMEOUT", "")
	os.Unsetenv("DETECTOR_TIMEOUT")

	cfg := Load(envFile)

	if cfg.Port != 7000 {
		t.Errorf("expected environment to win, got port %d", cfg.Port)
	}
	if cfg.RecordsDirectory != "/data/records" {
		t.Errorf("expected records dir from file, got %s", cfg.RecordsDirectory)
	}
	if cfg.DetectorTimeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", cfg.DetectorTimeout)
	}
	if cfg.StoreBackend != StoreBackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.StoreBackend)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "1m30s")
	if got := getEnvAsDuration("TEST_DURATION", 0); got != 90*time.Second {
		t.Errorf("expected 90s, got %v", got)
	}

	t.Setenv("TEST_DURATION", "garbage")
	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("expected default on invalid value, got %v", got)
	}
}
