package qrcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Range is a half-open character range [Start, End) within a raw code.
type Range struct {
	Start int
	End   int
}

// ParseRange parses the "start:end" notation used in configuration files.
func ParseRange(value string) (Range, error) {
	trimmed := strings.TrimSpace(value)
	startText, endText, ok := strings.Cut(trimmed, ":")
	if !ok {
		return Range{}, fmt.Errorf("range %q: expected start:end", value)
	}
	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return Range{}, fmt.Errorf("range %q: start: %w", value, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endText))
	if err != nil {
		return Range{}, fmt.Errorf("range %q: end: %w", value, err)
	}
	return Range{Start: start, End: end}, nil
}

func (r Range) String() string {
	return strconv.Itoa(r.Start) + ":" + strconv.Itoa(r.End)
}

// Len reports the number of characters covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) within(length int) error {
	if r.Start < 0 {
		return fmt.Errorf("range %s starts before 0", r)
	}
	if r.End < r.Start {
		return fmt.Errorf("range %s ends before it starts", r)
	}
	if r.End > length {
		return fmt.Errorf("range %s exceeds code length %d", r, length)
	}
	return nil
}

// Layout describes code lengths and the offsets of every extracted field.
type Layout struct {
	ManualLength     int
	ManualDataLength int
	ProcessLength    int

	// Candidates are matched against the manual payload in order; any hit counts.
	Candidates []Range
	SiteCode   Range
	OrderNo    Range
	DispatchNo Range
}

// Validate rejects layouts that would make classification ambiguous or
// slicing impossible.
func (l Layout) Validate() error {
	if l.ManualLength <= 0 {
		return errors.New("manual length must be positive")
	}
	if l.ProcessLength <= 0 {
		return errors.New("process length must be positive")
	}
	if l.ManualLength == l.ProcessLength {
		return fmt.Errorf("manual and process lengths must differ (both %d)", l.ManualLength)
	}
	if l.ManualDataLength <= 0 || l.ManualDataLength > l.ManualLength {
		return fmt.Errorf("manual data length must be between 1 and %d", l.ManualLength)
	}
	if len(l.Candidates) == 0 {
		return errors.New("at least one process candidate range is required")
	}
	for i, r := range l.Candidates {
		if err := r.within(l.ProcessLength); err != nil {
			return fmt.Errorf("process candidate %d: %w", i, err)
		}
	}
	named := []struct {
		name string
		r    Range
	}{
		{"site code", l.SiteCode},
		{"order number", l.OrderNo},
		{"dispatch number", l.DispatchNo},
	}
	for _, field := range named {
		if err := field.r.within(l.ProcessLength); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return nil
}
