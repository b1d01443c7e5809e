package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxRequestBodySize)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, StoreXLSX, cfg.ResultStore)
	assert.Equal(t, "no2_concentration_data.xlsx", cfg.ResultTable)
	assert.Equal(t, "no2", cfg.LegendPreset)
	assert.False(t, cfg.ParallelAnalysis)
	assert.Equal(t, 64, cfg.StripRows)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.AzureEnabled())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RESULT_STORE", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/results.db")
	t.Setenv("PARALLEL_ANALYSIS", "true")
	t.Setenv("ANALYSIS_WORKERS", "3")
	t.Setenv("STRIP_ROWS", "16")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_TOPIC", "no2")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
	t.Setenv("AZURE_STORAGE_KEY", "a2V5")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ServerAddress())
	assert.Equal(t, StoreSQLite, cfg.ResultStore)
	assert.True(t, cfg.ParallelAnalysis)
	assert.Equal(t, 3, cfg.AnalysisWorkers)
	assert.Equal(t, 16, cfg.StripRows)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.AzureEnabled())
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestLoadFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("PARALLEL_ANALYSIS", "maybe")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.ParallelAnalysis)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not numeric", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"body size", map[string]string{"MAX_REQUEST_BODY_SIZE": "-1"}},
		{"unknown store", map[string]string{"RESULT_STORE": "csv"}},
		{"table extension", map[string]string{"RESULT_TABLE": "results.csv"}},
		{"strip rows", map[string]string{"STRIP_ROWS": "0"}},
		{"negative workers", map[string]string{"ANALYSIS_WORKERS": "-2"}},
		{"azure half configured", map[string]string{"AZURE_STORAGE_ACCOUNT": "acct"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
