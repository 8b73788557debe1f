package outcome

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Entry is one journal row as stored on disk.
type Entry struct {
	Timestamp  string
	SiteCode   string
	TerminalID string
	OrderNo    string
	DispatchNo string
	Result     string
}

// ReadMonth returns the rows journaled for month (YYYYMM). A missing file
// yields no rows and no error.
func ReadMonth(dir, month string) ([]Entry, error) {
	if _, err := time.Parse(monthLayout, month); err != nil {
		return nil, fmt.Errorf("month %q: expected YYYYMM", month)
	}
	path := filepath.Join(dir, month+".csv")
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 6
	var entries []Entry
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("read journal %s: %w", path, err)
		}
		entries = append(entries, Entry{
			Timestamp:  row[0],
			SiteCode:   row[1],
			TerminalID: row[2],
			OrderNo:    row[3],
			DispatchNo: row[4],
			Result:     row[5],
		})
	}
	return entries, nil
}
