package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Mode is the entry point a knowledge search arrived through.
type Mode string

const (
	ModeMCP    Mode = "mcp"
	ModeSearch Mode = "search"
)

// Modes lists every tracked mode
var Modes = []Mode{ModeMCP, ModeSearch}

const dateLayout = "2006-01-02"

// Store persists daily invocation counts in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns ~/.m5doc/stats.db
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".m5doc", "stats.db"), nil
}

// NewStore opens the database at dbPath, creating the parent directory and
// schema when missing. An empty path uses DefaultPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		var err error
		if dbPath, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers
	db.SetMaxOpenConns(1)

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS search_counts (
			mode TEXT NOT NULL,
			day TEXT NOT NULL,
			count INTEGER DEFAULT 0,
			PRIMARY KEY (mode, day)
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Increment adds one invocation for mode on today's date.
func (s *Store) Increment(ctx context.Context, mode Mode) error {
	upsertSQL := `
		INSERT INTO search_counts (mode, day, count)
		VALUES (?, ?, 1)
		ON CONFLICT(mode, day) DO UPDATE SET count = count + 1;
	`
	if _, err := s.db.ExecContext(ctx, upsertSQL, string(mode), s.now().Format(dateLayout)); err != nil {
		return fmt.Errorf("failed to increment count: %w", err)
	}
	return nil
}

// TotalByMode returns the cumulative count for mode across all dates.
func (s *Store) TotalByMode(ctx context.Context, mode Mode) (int64, error) {
	var total int64
	row := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(count), 0) FROM search_counts WHERE mode = ?",
		string(mode),
	)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get total for mode %s: %w", mode, err)
	}
	return total, nil
}

// Totals returns cumulative counts for every mode, zero-filled.
func (s *Store) Totals(ctx context.Context) (map[Mode]int64, error) {
	result := make(map[Mode]int64, len(Modes))
	for _, mode := range Modes {
		result[mode] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT mode, COALESCE(SUM(count), 0) FROM search_counts GROUP BY mode",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var mode string
		var total int64
		if err := rows.Scan(&mode, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[Mode(mode)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// CountByDate returns the count for mode on date (YYYY-MM-DD).
func (s *Store) CountByDate(ctx context.Context, mode Mode, date string) (int64, error) {
	var count int64
	row := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(count, 0) FROM search_counts WHERE mode = ? AND day = ?",
		string(mode), date,
	)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get count: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
