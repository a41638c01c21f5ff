package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/montanaflynn/stats"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite stages rows in a scratch database inside a temporary directory.
// Used for the heavy ingestion strategy; the directory is removed on Close.
type SQLite struct {
	db  *sql.DB
	dir string
	n   int
}

// OpenSQLite creates a scratch database under parent (os.TempDir() when empty)
// and applies the embedded schema.
func OpenSQLite(ctx context.Context, parent string) (*SQLite, error) {
	dir, err := os.MkdirTemp(parent, "scaledash-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "measurements.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("opening scratch db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("pinging scratch db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		os.RemoveAll(dir)
		return nil, err
	}

	return &SQLite{db: db, dir: dir}, nil
}

// runMigrations applies the embedded schema. The migrate instance is not
// closed because that would close db as well.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		src.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		src.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		src.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	return src.Close()
}

func columns() []string {
	cols := make([]string, 0, quantity.Count)
	for _, q := range quantity.All() {
		cols = append(cols, q.Descriptor().Column)
	}
	return cols
}

// Append inserts rows in one transaction.
func (s *SQLite) Append(ctx context.Context, rows []Measurement) error {
	if len(rows) == 0 {
		return nil
	}

	cols := columns()
	query := fmt.Sprintf("INSERT INTO measurements (ts, %s) VALUES (?%s)",
		strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, 1+len(cols))
	for _, r := range rows {
		args[0] = nanos(r.Time)
		for i, v := range r.Values {
			args[i+1] = sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting measurement at %s: %w", r.Time.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	s.n += len(rows)
	return nil
}

func (s *SQLite) Len() int { return s.n }

func (s *SQLite) Bounds(ctx context.Context) (time.Time, time.Time, error) {
	var lo, hi sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MIN(ts), MAX(ts) FROM measurements`).Scan(&lo, &hi)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("querying bounds: %w", err)
	}
	if !lo.Valid {
		return time.Time{}, time.Time{}, nil
	}
	return fromNanos(lo.Int64), fromNanos(hi.Int64), nil
}

func (s *SQLite) Series(ctx context.Context, q quantity.Quantity) ([]Point, error) {
	col := q.Descriptor().Column
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT ts, %[1]s FROM measurements WHERE %[1]s IS NOT NULL ORDER BY ts ASC`, col))
	if err != nil {
		return nil, fmt.Errorf("querying %s series: %w", q, err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var ts int64
		var v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, fmt.Errorf("scanning %s series: %w", q, err)
		}
		points = append(points, Point{Time: fromNanos(ts), Value: v})
	}
	return points, rows.Err()
}

func (s *SQLite) Extent(ctx context.Context, q quantity.Quantity, from, to time.Time) (Extent, error) {
	col := q.Descriptor().Column
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %[1]s FROM measurements WHERE %[1]s IS NOT NULL AND ts >= ? AND ts <= ?`, col),
		nanos(from), nanos(to))
	if err != nil {
		return Extent{}, fmt.Errorf("querying %s extent: %w", q, err)
	}
	defer rows.Close()

	var values stats.Float64Data
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return Extent{}, fmt.Errorf("scanning %s extent: %w", q, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return Extent{}, err
	}
	return summarize(values)
}

func (s *SQLite) Rows(ctx context.Context, from, to time.Time) ([]Measurement, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT ts, %s FROM measurements WHERE ts >= ? AND ts <= ? ORDER BY ts ASC`,
			strings.Join(columns(), ", ")),
		nanos(from), nanos(to))
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	var result []Measurement
	for rows.Next() {
		var ts int64
		var vals [quantity.Count]sql.NullFloat64
		dest := make([]any, 0, 1+quantity.Count)
		dest = append(dest, &ts)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		m := NewMeasurement(fromNanos(ts))
		for i, v := range vals {
			if v.Valid {
				m.Values[i] = v.Float64
			}
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Close closes the database and removes the scratch directory.
func (s *SQLite) Close() error {
	err := s.db.Close()
	if rmErr := os.RemoveAll(s.dir); err == nil {
		err = rmErr
	}
	return err
}

var (
	minNanos = time.Unix(0, math.MinInt64)
	maxNanos = time.Unix(0, math.MaxInt64)
)

// nanos is t.UnixNano saturated to the int64 range, so windows reaching
// far outside the data still compare correctly.
func nanos(t time.Time) int64 {
	switch {
	case t.Before(minNanos):
		return math.MinInt64
	case t.After(maxNanos):
		return math.MaxInt64
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
