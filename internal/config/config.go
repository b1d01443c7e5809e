package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreXLSX   = "xlsx"
	StoreSQLite = "sqlite"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Intake and persistence
	UploadDir   string
	ResultStore string
	ResultTable string
	SQLitePath  string

	// Legend selection: LegendFile wins over LegendPreset
	LegendFile   string
	LegendPreset string

	// Traversal
	ParallelAnalysis bool
	AnalysisWorkers  int
	StripRows        int

	// Optional integrations, disabled when empty
	KafkaBrokers        []string
	KafkaTopic          string
	AzureStorageAccount string
	AzureStorageKey     string
	MetricsEnabled      bool
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob credentials are configured
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// KafkaEnabled reports whether result events are published
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		UploadDir:   getEnvOrDefault("UPLOAD_DIR", "uploads"),
		ResultStore: strings.ToLower(getEnvOrDefault("RESULT_STORE", StoreXLSX)),
		ResultTable: getEnvOrDefault("RESULT_TABLE", "no2_concentration_data.xlsx"),
		SQLitePath:  getEnvOrDefault("SQLITE_PATH", "no2_concentration_data.db"),

		LegendFile:   os.Getenv("LEGEND_FILE"),
		LegendPreset: getEnvOrDefault("LEGEND_PRESET", "no2"),

		ParallelAnalysis: parseBoolOrDefault("PARALLEL_ANALYSIS", false),
		AnalysisWorkers:  int(parseIntOrDefault("ANALYSIS_WORKERS", 0)),
		StripRows:        int(parseIntOrDefault("STRIP_ROWS", 64)),

		KafkaBrokers:        parseListOrDefault("KAFKA_BROKERS", nil),
		KafkaTopic:          getEnvOrDefault("KAFKA_TOPIC", "heatmap.results"),
		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),
		MetricsEnabled:      parseBoolOrDefault("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	switch c.ResultStore {
	case StoreXLSX:
		if !strings.HasSuffix(strings.ToLower(c.ResultTable), ".xlsx") {
			return fmt.Errorf("RESULT_TABLE must be an .xlsx file (got %q)", c.ResultTable)
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH must be set when RESULT_STORE=sqlite")
		}
	default:
		return fmt.Errorf("invalid RESULT_STORE: %q (want %s or %s)", c.ResultStore, StoreXLSX, StoreSQLite)
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	if c.AnalysisWorkers < 0 {
		return fmt.Errorf("ANALYSIS_WORKERS must be >= 0 (got %d)", c.AnalysisWorkers)
	}
	if c.StripRows <= 0 {
		return fmt.Errorf("STRIP_ROWS must be > 0 (got %d)", c.StripRows)
	}
	if (c.AzureStorageAccount == "") != (c.AzureStorageKey == "") {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
