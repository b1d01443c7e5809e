package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/anime-shed/heatmap-inspector/pkg/models"
)

// DefaultResultTable is the workbook used when none is configured.
const DefaultResultTable = "no2_concentration_data.xlsx"

// ErrStoreClosed is returned by a result store after Close.
var ErrStoreClosed = errors.New("result store closed")

// XLSXResultStore appends result rows to a single-sheet workbook with the
// columns Place Name, Date and the average concentration. Every append reads
// the existing workbook, adds one row and atomically replaces the file.
// Appends are serialized within the process only.
type XLSXResultStore struct {
	mu        sync.Mutex
	path      string
	header    []string
	pollutant string
	unit      string
	closed    bool
}

// NewXLSXResultStore creates a store for path. pollutant and unit name the
// value column, e.g. "Average NO2 Concentration (µg/m³)".
func NewXLSXResultStore(path, pollutant, unit string) *XLSXResultStore {
	return &XLSXResultStore{
		path:      path,
		pollutant: pollutant,
		unit:      unit,
		header: []string{
			"Place Name",
			"Date",
			fmt.Sprintf("Average %s Concentration (%s)", pollutant, unit),
		},
	}
}

// Header returns the column names written to a new workbook
func (s *XLSXResultStore) Header() []string {
	return append([]string(nil), s.header...)
}

// Path returns the workbook location
func (s *XLSXResultStore) Path() string {
	return s.path
}

// Append adds one row. A missing workbook is created with a header row.
func (s *XLSXResultStore) Append(ctx context.Context, r models.AggregateResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	f, rows, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	next := len(rows) + 1
	if len(rows) == 0 {
		if err := setRow(f, 1, s.header); err != nil {
			return err
		}
		next = 2
	}

	row := []interface{}{r.PlaceName, r.AsOfDate, r.AverageConcentration}
	if err := setRow(f, next, row); err != nil {
		return err
	}

	return s.replace(f)
}

// List returns every data row in file order
func (s *XLSXResultStore) List(ctx context.Context) ([]models.AggregateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	f, rows, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if len(rows) <= 1 {
		return []models.AggregateResult{}, nil
	}

	results := make([]models.AggregateResult, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("%s row %d: expected 3 columns, got %d", s.path, i+2, len(row))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid concentration %q: %w", s.path, i+2, row[2], err)
		}
		results = append(results, models.AggregateResult{
			PlaceName:            row[0],
			AsOfDate:             row[1],
			Pollutant:            s.pollutant,
			Unit:                 s.unit,
			AverageConcentration: v,
		})
	}
	return results, nil
}

// Close marks the store closed
func (s *XLSXResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// open loads the workbook, or starts an empty one when the file is missing.
// Rows are read from the first sheet whatever its name.
func (s *XLSXResultStore) open() (*excelize.File, [][]string, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return f, rows, nil
}

// replace writes the workbook to a temp file next to the target and renames
// it over the original.
func (s *XLSXResultStore) replace(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close workbook: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func setRow[T any](f *excelize.File, row int, values []T) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(f.GetSheetName(0), cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
