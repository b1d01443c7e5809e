package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/anime-shed/heatmap-inspector/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteResultStore appends result rows to a SQLite table
type SQLiteResultStore struct {
	db *sql.DB
}

// NewSQLiteResultStore opens path and applies pending migrations
func NewSQLiteResultStore(path string) (*SQLiteResultStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure %s: %w", path, err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteResultStore{db: db}, nil
}

// migrateUp runs all pending migrations. The migrate instance is not closed
// because that would close db.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger on top of logrus
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	logrus.WithField("component", "migrate").Debugf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Append inserts one row. An empty ID is filled with a new UUID.
func (s *SQLiteResultStore) Append(ctx context.Context, r models.AggregateResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	distribution, err := json.Marshal(r.Distribution)
	if err != nil {
		return fmt.Errorf("failed to encode distribution: %w", err)
	}
	statistics, err := json.Marshal(r.Statistics)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (
			id, place_name, as_of_date, pollutant, unit, average_concentration,
			pixel_count, width, height, image_name, annotated_image_url,
			distribution, statistics, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlaceName, r.AsOfDate, r.Pollutant, r.Unit, r.AverageConcentration,
		r.PixelCount, r.Width, r.Height, r.ImageName, r.AnnotatedImageURL,
		string(distribution), string(statistics), r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// List returns every row in insertion order
func (s *SQLiteResultStore) List(ctx context.Context) ([]models.AggregateResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, place_name, as_of_date, pollutant, unit, average_concentration,
			pixel_count, width, height, image_name, annotated_image_url,
			distribution, statistics, created_at
		FROM results ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []models.AggregateResult{}
	for rows.Next() {
		var (
			r                        models.AggregateResult
			distribution, statistics string
			createdAt                string
		)
		if err := rows.Scan(
			&r.ID, &r.PlaceName, &r.AsOfDate, &r.Pollutant, &r.Unit, &r.AverageConcentration,
			&r.PixelCount, &r.Width, &r.Height, &r.ImageName, &r.AnnotatedImageURL,
			&distribution, &statistics, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(distribution), &r.Distribution); err != nil {
			return nil, fmt.Errorf("result %s: invalid distribution: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(statistics), &r.Statistics); err != nil {
			return nil, fmt.Errorf("result %s: invalid statistics: %w", r.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = t
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close closes the database
func (s *SQLiteResultStore) Close() error {
	return s.db.Close()
}
