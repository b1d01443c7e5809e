package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeHeatmap(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{255, 0, 0, 255})
	img.Set(0, 1, color.RGBA{0, 255, 0, 255})
	img.Set(1, 1, color.RGBA{0, 0, 255, 255})

	path := filepath.Join(dir, "map.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"heatmap-inspect"}, args...))
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	heatmap := writeHeatmap(t, dir)
	table := filepath.Join(dir, "results.xlsx")
	uploads := filepath.Join(dir, "uploads")

	for _, store := range []string{"xlsx", "sqlite"} {
		t.Run(store, func(t *testing.T) {
			sqlitePath := filepath.Join(dir, "results.db")
			out, err := run(t, "analyze",
				"--store", store, "--table", table, "--sqlite", sqlitePath, "--uploads", uploads,
				"--place", "Delhi", "--date", "2024-03-01", heatmap)
			require.NoError(t, err)
			assert.Contains(t, out, "Average NO₂ concentration at Delhi on 2024-03-01: 65.00 µg/m³")

			out, err = run(t, "results", "--store", store, "--table", table, "--sqlite", sqlitePath)
			require.NoError(t, err)
			assert.Contains(t, out, "Delhi")
			assert.Contains(t, out, "65.00")
		})
	}

	_, err := os.Stat(table)
	assert.NoError(t, err)
}

func TestAnalyzeCommand_Parallel(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "analyze",
		"--table", filepath.Join(dir, "results.xlsx"), "--uploads", filepath.Join(dir, "uploads"),
		"--parallel", "--strip-rows", "1", writeHeatmap(t, dir))
	require.NoError(t, err)
	assert.Contains(t, out, "at Unknown on")
	assert.Contains(t, out, ": 65.00 µg/m³")
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "analyze", "--table", filepath.Join(dir, "results.xlsx"))
	assert.Error(t, err)

	_, err = run(t, "analyze", "--table", filepath.Join(dir, "results.xlsx"),
		"--uploads", filepath.Join(dir, "uploads"), filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	_, err = run(t, "analyze", "--table", filepath.Join(dir, "results.xlsx"),
		"--uploads", filepath.Join(dir, "uploads"), "--preset", "no3", writeHeatmap(t, dir))
	assert.ErrorContains(t, err, `did you mean "no2"`)
}

func TestLegendCommand(t *testing.T) {
	out, err := run(t, "legend")
	require.NoError(t, err)
	assert.Contains(t, out, "#ff0000")
	assert.Contains(t, out, "100")
	assert.Contains(t, out, "yellow")
}
