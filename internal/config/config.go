package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

type Config struct {
	Port             int
	DetectorURL      string
	DetectorTimeout  time.Duration
	RecordsDirectory string
	ImagesDirectory  string
	StoreBackend     string
	DBPath           string
	MaxUploadSize    int64
	LogLevel         string
	LogFile          string
}

// Load reads the environment, after applying an optional .env file. Values
// already set in the environment win over the file.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	return &Config{
		Port:             getEnvAsInt("PORT", 8080),
		DetectorURL:      getEnv("DETECTOR_URL", "http://localhost:8000/detect"),
		DetectorTimeout:  getEnvAsDuration("DETECTOR_TIMEOUT", 0),
		RecordsDirectory: getEnv("RECORDS_DIR", "./records"),
		ImagesDirectory:  getEnv("IMAGES_DIR", "./images"),
		StoreBackend:     getEnv("STORE_BACKEND", StoreBackendFile),
		DBPath:           getEnv("DB_PATH", "./detectsnap.db"),
		MaxUploadSize:    getEnvAsInt64("MAX_UPLOAD_SIZE", 20<<20),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
