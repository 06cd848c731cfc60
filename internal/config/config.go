package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL        string
	APIAddr           string
	TemporalAddress   string
	TemporalTaskQueue string
	PostgresURL       string
	DownloadDir       string
	DefaultsFile      string
	AppEnv            string
	LogLevel          string
	LogFormat         string
	PresignTimeout    time.Duration
	PreviewTimeout    time.Duration
	UploadTimeout     time.Duration
	OptimizeTimeout   time.Duration
	ExportTimeout     time.Duration
}

// DefaultAPIBaseURL is the local reverse-proxy path used when no origin is configured.
const DefaultAPIBaseURL = "http://localhost:5173/api"

func Load() Config {
	return Config{
		APIBaseURL:        strings.TrimRight(getenvFirst([]string{"TRUCKPLANNER_API_URL", "VITE_API_URL"}, DefaultAPIBaseURL), "/"),
		APIAddr:           getenv("TRUCKPLANNER_API_ADDR", ":8090"),
		TemporalAddress:   getenv("TRUCKPLANNER_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue: getenv("TRUCKPLANNER_TEMPORAL_TASK_QUEUE", "truckplanner"),
		PostgresURL:       os.Getenv("TRUCKPLANNER_POSTGRES_URL"),
		DownloadDir:       getenv("TRUCKPLANNER_DOWNLOAD_DIR", "./downloads"),
		DefaultsFile:      getenv("TRUCKPLANNER_DEFAULTS_FILE", "planner.toml"),
		AppEnv:            getenv("TRUCKPLANNER_ENV", "local"),
		LogLevel:          getenv("TRUCKPLANNER_LOG_LEVEL", "info"),
		LogFormat:         getenv("TRUCKPLANNER_LOG_FORMAT", "text"),
		PresignTimeout:    10 * time.Second,
		PreviewTimeout:    15 * time.Second,
		UploadTimeout:     getenvSeconds("TRUCKPLANNER_UPLOAD_TIMEOUT_SECONDS", 0),
		OptimizeTimeout:   getenvSeconds("TRUCKPLANNER_OPTIMIZE_TIMEOUT_SECONDS", 300),
		ExportTimeout:     getenvSeconds("TRUCKPLANNER_EXPORT_TIMEOUT_SECONDS", 120),
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getenvSeconds returns 0 (no timeout) for a zero or negative value.
func getenvSeconds(k string, fallback int) time.Duration {
	n := getenvInt(k, fallback)
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
