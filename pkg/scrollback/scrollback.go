// Package scrollback stores every line a session displays or sends in
// a SQLite database, one row per line, so #recall can query history
// across restarts.
package scrollback

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crystal-mush/gofugue/pkg/script"
)

// Source says where a recorded line came from.
type Source int

const (
	SourceOutput Source = iota // received from a world
	SourceSent                 // sent to a world
	SourceLocal                // locally generated (echoes)
	SourceInput                // typed input history
)

// Line is one recorded scrollback row.
type Line struct {
	ID     int64
	World  string
	Source Source
	Body   string
	Gagged bool
	Time   time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS lines (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	world  TEXT NOT NULL,
	source INTEGER NOT NULL,
	body   TEXT NOT NULL,
	gagged INTEGER NOT NULL DEFAULT 0,
	ts     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lines_world_ts ON lines(world, ts);
CREATE INDEX IF NOT EXISTS idx_lines_ts ON lines(ts);
`

// Store manages the scrollback database. It is safe for one writer;
// the session goroutine owns it.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the scrollback database, sets WAL mode and a
// busy timeout, and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scrollback: open %s: %w", path, err)
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
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string { return s.path }

// Insert records one line.
func (s *Store) Insert(world string, source Source, body string, gagged bool, ts time.Time) error {
	g := 0
	if gagged {
		g = 1
	}
	_, err := s.db.Exec(
		"INSERT INTO lines (world, source, body, gagged, ts) VALUES (?, ?, ?, ?, ?)",
		world, int(source), body, g, ts.Unix())
	if err != nil {
		return fmt.Errorf("scrollback: insert: %w", err)
	}
	return nil
}

// Purge deletes lines older than the retention window and returns how
// many were removed.
func (s *Store) Purge(olderThan time.Duration, now time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM lines WHERE ts < ?", now.Add(-olderThan).Unix())
	if err != nil {
		return 0, fmt.Errorf("scrollback: purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Query runs one #recall against the store. Source, world, gag, and
// range constraints become SQL; the pattern (with inversion and
// before/after context) is applied to the fetched rows.
func (s *Store) Query(opts *script.RecallOptions, now time.Time) ([]Line, error) {
	var conds []string
	var args []any

	switch opts.Source {
	case script.RecallWorld:
		conds = append(conds, "world = ?", "source IN (0, 1)")
		args = append(args, opts.World)
	case script.RecallGlobal:
		conds = append(conds, "source IN (0, 1)")
	case script.RecallLocal:
		conds = append(conds, "source = ?")
		args = append(args, int(SourceLocal))
	case script.RecallInput:
		conds = append(conds, "source = ?")
		args = append(args, int(SourceInput))
	}
	if !opts.IncludeGagged {
		conds = append(conds, "gagged = 0")
	}

	q := "SELECT id, world, source, body, gagged, ts FROM lines"
	suffix := " ORDER BY id"
	switch {
	case opts.StartLine > 0:
		conds = append(conds, "id BETWEEN ? AND ?")
		args = append(args, opts.StartLine, opts.EndLine)
	case opts.Window > 0:
		conds = append(conds, "ts >= ?")
		args = append(args, now.Add(-opts.Window).Unix())
	case opts.Back > 0:
		suffix = " ORDER BY id DESC LIMIT 1 OFFSET ?"
		args = append(args, opts.Back-1)
	case opts.Last > 0:
		// Newest N, returned oldest-first below.
		suffix = " ORDER BY id DESC LIMIT ?"
		args = append(args, opts.Last)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += suffix

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("scrollback: query: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		var src, gag int
		var ts int64
		if err := rows.Scan(&l.ID, &l.World, &src, &l.Body, &gag, &ts); err != nil {
			return nil, fmt.Errorf("scrollback: scan: %w", err)
		}
		l.Source = Source(src)
		l.Gagged = gag != 0
		l.Time = time.Unix(ts, 0)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scrollback: rows: %w", err)
	}

	// DESC queries come back newest-first; present oldest-first.
	if opts.Back > 0 || (opts.Last > 0 && opts.StartLine == 0 && opts.Window == 0) {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}

	if opts.Pattern == "" {
		return lines, nil
	}
	return filterPattern(lines, opts)
}

// filterPattern keeps lines matching (or, inverted, not matching) the
// pattern, plus any requested context lines around each match.
func filterPattern(lines []Line, opts *script.RecallOptions) ([]Line, error) {
	matched := make([]bool, len(lines))
	for i, l := range lines {
		ok, err := script.MatchText(opts.Pattern, opts.Mode, l.Body)
		if err != nil {
			return nil, fmt.Errorf("scrollback: %w", err)
		}
		if opts.Invert {
			ok = !ok
		}
		matched[i] = ok
	}
	keep := make([]bool, len(lines))
	for i := range lines {
		if !matched[i] {
			continue
		}
		lo := i - opts.Before
		if lo < 0 {
			lo = 0
		}
		hi := i + opts.After
		if hi >= len(lines) {
			hi = len(lines) - 1
		}
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}
	var out []Line
	for i, l := range lines {
		if keep[i] {
			out = append(out, l)
		}
	}
	return out, nil
}
