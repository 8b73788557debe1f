package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"qrassure/internal/logging"
	"qrassure/internal/outcome"
)

// storedTimeLayout is fixed width so recorded_at sorts lexically.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the outcome index backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Entry is one indexed outcome.
type Entry struct {
	ID         int64
	AttemptID  string
	RecordedAt time.Time
	TerminalID string
	SiteCode   string
	OrderNo    string
	DispatchNo string
	Result     outcome.Result
	Raw        string
}

// Summary counts outcomes per result since a point in time.
type Summary struct {
	Since    time.Time
	Match    int
	Mismatch int
	Unknown  int
	Last     time.Time
}

// Total returns the number of outcomes in the summary window.
func (s Summary) Total() int {
	return s.Match + s.Mismatch + s.Unknown
}

// Open creates or connects to the index at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps pragmas and writes on one handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "history")}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores rec and returns its row id.
func (s *Store) Insert(ctx context.Context, rec outcome.Record) (int64, error) {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (
            attempt_id, recorded_at, terminal_id, site_code, order_no, dispatch_no, result, raw
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(rec.AttemptID),
		ts.UTC().Format(storedTimeLayout),
		rec.TerminalID,
		rec.SiteCode,
		rec.OrderNo,
		rec.DispatchNo,
		rec.Result.String(),
		nullableString(rec.Raw),
	)
	if err != nil {
		return 0, fmt.Errorf("insert outcome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Record implements outcome.Recorder. Failures are logged and dropped.
func (s *Store) Record(ctx context.Context, rec outcome.Record) {
	if _, err := s.Insert(ctx, rec); err != nil {
		logging.WarnWithContext(s.logger, "history insert failed", "history_insert_failed",
			logging.Error(err),
			logging.String(logging.FieldAttemptID, rec.AttemptID),
			logging.String(logging.FieldErrorHint, "delete the history database if it is corrupt; it is rebuilt on start"),
			logging.String(logging.FieldImpact, "outcome missing from history views; journal row unaffected"),
		)
	}
}

// Recent returns up to limit outcomes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, recorded_at, terminal_id, site_code, order_no, dispatch_no, result, raw
         FROM outcomes ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return entries, nil
}

// Summary counts outcomes recorded at or after since. A zero since covers everything.
func (s *Store) Summary(ctx context.Context, since time.Time) (Summary, error) {
	summary := Summary{Since: since}
	cutoff := ""
	if !since.IsZero() {
		cutoff = since.UTC().Format(storedTimeLayout)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT result, COUNT(1), MAX(recorded_at) FROM outcomes
         WHERE recorded_at >= ? GROUP BY result`, cutoff)
	if err != nil {
		return summary, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			label string
			count int
			last  string
		)
		if err := rows.Scan(&label, &count, &last); err != nil {
			return summary, fmt.Errorf("scan summary: %w", err)
		}
		result, _ := outcome.ParseResult(label)
		switch result {
		case outcome.ResultMatch:
			summary.Match = count
		case outcome.ResultMismatch:
			summary.Mismatch = count
		case outcome.ResultUnknown:
			summary.Unknown = count
		}
		if ts := parseTime(last); ts.After(summary.Last) {
			summary.Last = ts
		}
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterate summary: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry      Entry
		attemptID  sql.NullString
		recordedAt string
		result     string
		raw        sql.NullString
	)
	if err := row.Scan(&entry.ID, &attemptID, &recordedAt, &entry.TerminalID, &entry.SiteCode,
		&entry.OrderNo, &entry.DispatchNo, &result, &raw); err != nil {
		return Entry{}, fmt.Errorf("scan outcome: %w", err)
	}
	entry.AttemptID = attemptID.String
	entry.RecordedAt = parseTime(recordedAt)
	entry.Result, _ = outcome.ParseResult(result)
	entry.Raw = raw.String
	return entry, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(storedTimeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
