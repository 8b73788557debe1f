package outcome

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"qrassure/internal/logging"
)

var (
	// ErrLogWrite wraps failures to create the journal directory or append a row.
	ErrLogWrite = errors.New("journal write failed")
	// ErrLogRotation wraps failures while pruning old monthly files.
	ErrLogRotation = errors.New("journal rotation failed")
)

const (
	// TimestampLayout is the journal timestamp column format.
	TimestampLayout = "2006/01/02 15:04:05"
	monthLayout     = "200601"
	filePattern     = "[0-9][0-9][0-9][0-9][0-9][0-9].csv"
)

// Labels are the journal result-column texts for resolved pairs.
type Labels struct {
	Match    string
	Mismatch string
}

// Journal appends outcome records to monthly CSV files.
type Journal struct {
	dir    string
	keep   int
	labels Labels
	logger *slog.Logger

	mu sync.Mutex
}

// NewJournal returns a journal rooted at dir that keeps at most keep monthly files.
func NewJournal(dir string, keep int, labels Labels, logger *slog.Logger) *Journal {
	return &Journal{
		dir:    dir,
		keep:   keep,
		labels: labels,
		logger: logging.NewComponentLogger(logger, "journal"),
	}
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Record appends rec and logs any failure. It implements Recorder.
func (j *Journal) Record(_ context.Context, rec Record) {
	path, err := j.Append(rec)
	switch {
	case err == nil:
		j.logger.Debug("journal row appended",
			logging.String("path", path),
			logging.String(logging.FieldAttemptID, rec.AttemptID),
		)
	case errors.Is(err, ErrLogRotation):
		logging.WarnWithContext(j.logger, "journal rotation failed", "journal_rotation_failed",
			logging.Error(err),
			logging.String("dir", j.dir),
			logging.String(logging.FieldErrorHint, "check permissions on the journal directory"),
			logging.String(logging.FieldImpact, "old monthly files were not pruned"),
		)
	default:
		logging.WarnWithContext(j.logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldAttemptID, rec.AttemptID),
			logging.String("result", rec.Result.String()),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the journal directory"),
			logging.String(logging.FieldImpact, "outcome record dropped"),
		)
	}
}

// Append writes rec to its monthly file and prunes old files. It returns the
// file written. Rotation errors wrap ErrLogRotation and mean the row itself
// was written.
func (j *Journal) Append(rec Record) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create directory %s: %v", ErrLogWrite, j.dir, err)
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	path := MonthPath(j.dir, ts)
	if err := appendRow(path, j.row(rec, ts)); err != nil {
		return path, fmt.Errorf("%w: %s: %v", ErrLogWrite, path, err)
	}
	if err := j.rotate(); err != nil {
		return path, fmt.Errorf("%w: %v", ErrLogRotation, err)
	}
	return path, nil
}

func (j *Journal) row(rec Record, ts time.Time) []string {
	result := rec.Raw
	switch rec.Result {
	case ResultMatch:
		result = j.labels.Match
	case ResultMismatch:
		result = j.labels.Mismatch
	}
	return []string{
		ts.Local().Format(TimestampLayout),
		cellText(rec.SiteCode),
		cellText(rec.TerminalID),
		cellText(rec.OrderNo),
		cellText(rec.DispatchNo),
		cellText(result),
	}
}

// cellText quotes values a spreadsheet would evaluate as a formula. Scans are
// untrusted input and the journal is opened in spreadsheet tools.
func cellText(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}

func appendRow(path string, row []string) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	w := csv.NewWriter(file)
	// Existing deployments open these files in spreadsheet tools on Windows.
	w.UseCRLF = true
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// rotate removes the least recently modified monthly files beyond the keep limit.
func (j *Journal) rotate() error {
	if j.keep <= 0 {
		return nil
	}
	files, err := monthlyFiles(j.dir)
	if err != nil {
		return err
	}
	if len(files) <= j.keep {
		return nil
	}
	sort.Slice(files, func(a, b int) bool {
		if files[a].modTime.Equal(files[b].modTime) {
			return files[a].path < files[b].path
		}
		return files[a].modTime.Before(files[b].modTime)
	})
	var errs []error
	for _, f := range files[:len(files)-j.keep] {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		j.logger.Info("journal file pruned",
			logging.String("path", f.path),
			logging.String(logging.FieldEventType, "journal_pruned"),
		)
	}
	return errors.Join(errs...)
}

type monthlyFile struct {
	path    string
	modTime time.Time
}

func monthlyFiles(dir string) ([]monthlyFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePattern))
	if err != nil {
		return nil, err
	}
	files := make([]monthlyFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		files = append(files, monthlyFile{path: path, modTime: info.ModTime()})
	}
	return files, nil
}

// MonthPath returns the journal file for the month containing ts.
func MonthPath(dir string, ts time.Time) string {
	return filepath.Join(dir, ts.Local().Format(monthLayout)+".csv")
}

// Months lists the months present in dir, newest first, as YYYYMM strings.
func Months(dir string) ([]string, error) {
	files, err := monthlyFiles(dir)
	if err != nil {
		return nil, err
	}
	months := make([]string, 0, len(files))
	for _, f := range files {
		months = append(months, strings.TrimSuffix(filepath.Base(f.path), ".csv"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months, nil
}
