// Package scrollback keeps a SQLite-backed log of received lines so past
// output can be recalled by text search or by count after it has scrolled
// off the display.
package scrollback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS lines (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	at   INTEGER NOT NULL,
	text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS lines_at ON lines(at);
`

// Line is one recalled line of output.
type Line struct {
	When time.Time
	Text string
}

// Store manages the SQLite connection behind the recall log.
type Store struct {
	db    *sql.DB
	path  string
	limit int // retained lines, 0 for unlimited
}

// Open opens a SQLite database, sets WAL mode and a busy timeout, and
// creates the schema. limit bounds how many lines are retained.
func Open(path string, limit int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scrollback: opening %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("scrollback: setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("scrollback: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("scrollback: creating schema: %w", err)
	}
	return &Store{db: db, path: path, limit: limit}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string { return s.path }

// Append records one received line.
func (s *Store) Append(ctx context.Context, when time.Time, text string) error {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO lines(at, text) VALUES(?, ?)", when.UnixMilli(), text); err != nil {
		return fmt.Errorf("scrollback: append: %w", err)
	}
	if s.limit > 0 {
		_, err := s.db.ExecContext(ctx,
			"DELETE FROM lines WHERE id <= (SELECT MAX(id) FROM lines) - ?", s.limit)
		if err != nil {
			return fmt.Errorf("scrollback: trim: %w", err)
		}
	}
	return nil
}

// Recent returns the newest n lines, oldest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Line, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT at, text FROM lines ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("scrollback: recent: %w", err)
	}
	defer rows.Close()
	lines, err := scanLines(rows)
	if err != nil {
		return nil, err
	}
	reverse(lines)
	return lines, nil
}

// Search returns the newest n lines containing the text, oldest first.
// Matching is case-insensitive for ASCII, which is what SQLite's LIKE
// gives us.
func (s *Store) Search(ctx context.Context, text string, n int) ([]Line, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT at, text FROM lines WHERE text LIKE '%' || ? || '%' ORDER BY id DESC LIMIT ?",
		text, n)
	if err != nil {
		return nil, fmt.Errorf("scrollback: search: %w", err)
	}
	defer rows.Close()
	lines, err := scanLines(rows)
	if err != nil {
		return nil, err
	}
	reverse(lines)
	return lines, nil
}

// Count returns how many lines are retained.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines").Scan(&n); err != nil {
		return 0, fmt.Errorf("scrollback: count: %w", err)
	}
	return n, nil
}

func scanLines(rows *sql.Rows) ([]Line, error) {
	var lines []Line
	for rows.Next() {
		var at int64
		var text string
		if err := rows.Scan(&at, &text); err != nil {
			return nil, fmt.Errorf("scrollback: scan: %w", err)
		}
		lines = append(lines, Line{When: time.UnixMilli(at), Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scrollback: rows: %w", err)
	}
	return lines, nil
}

func reverse(lines []Line) {
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
}
