package container

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/heatmap-inspector/internal/config"
	"github.com/anime-shed/heatmap-inspector/internal/service"
)

func testConfig(t *testing.T, store string) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               "8080",
		RequestTimeout:     5 * time.Second,
		ImageFetchTimeout:  5 * time.Second,
		AnalysisTimeout:    5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		UploadDir:          filepath.Join(dir, "uploads"),
		ResultStore:        store,
		ResultTable:        filepath.Join(dir, "results.xlsx"),
		SQLitePath:         filepath.Join(dir, "results.db"),
		LegendPreset:       "no2",
		ParallelAnalysis:   true,
		StripRows:          1,
		MetricsEnabled:     true,
	}
}

func TestNewContainerWithConfig(t *testing.T) {
	for _, store := range []string{config.StoreXLSX, config.StoreSQLite} {
		t.Run(store, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			c, err := NewContainerWithConfig(testConfig(t, store), WithSyncEvents(), WithMetricsRegistry(reg))
			require.NoError(t, err)

			assert.NotNil(t, c.Handler())
			assert.Equal(t, "NO2", c.Legend().Pollutant())

			img := image.NewRGBA(image.Rect(0, 0, 2, 2))
			img.Set(0, 0, color.RGBA{255, 0, 0, 255})
			img.Set(1, 0, color.RGBA{255, 0, 0, 255})
			img.Set(0, 1, color.RGBA{0, 255, 0, 255})
			img.Set(1, 1, color.RGBA{0, 0, 255, 255})
			var buf bytes.Buffer
			require.NoError(t, png.Encode(&buf, img))

			res, err := c.Service().Inspect(context.Background(), service.InspectRequest{
				Body:      &buf,
				Filename:  "map.png",
				PlaceName: "Delhi",
			})
			require.NoError(t, err)
			assert.Equal(t, 65.0, res.AverageConcentration)

			rows, err := c.Service().ListResults(context.Background())
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, 65.0, rows[0].AverageConcentration)

			count, err := testutil.GatherAndCount(reg, "heatmap_inspector_results_stored_total")
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			assert.NoError(t, c.Close())
		})
	}
}

func TestNewContainerWithConfig_UnknownLegend(t *testing.T) {
	cfg := testConfig(t, config.StoreXLSX)
	cfg.LegendPreset = "ozone"

	_, err := NewContainerWithConfig(cfg)
	assert.Error(t, err)
}
