package qrcode

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrFormat marks a scan that has the right length for its kind but cannot
// be parsed as that kind.
var ErrFormat = errors.New("invalid code format")

// ExtractedManual holds the comparable part of a manual code.
type ExtractedManual struct {
	Payload string
}

// ExtractedProcess holds the fields sliced from a process code.
type ExtractedProcess struct {
	Candidates []string
	SiteCode   string
	OrderNo    string
	DispatchNo string
}

// Classifier applies a validated Layout to raw scans. It is immutable and
// safe for concurrent use.
type Classifier struct {
	layout Layout
}

// NewClassifier validates layout and returns a classifier bound to it.
func NewClassifier(layout Layout) (*Classifier, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("code layout: %w", err)
	}
	candidates := make([]Range, len(layout.Candidates))
	copy(candidates, layout.Candidates)
	layout.Candidates = candidates
	return &Classifier{layout: layout}, nil
}

// Layout returns a copy of the layout the classifier was built with.
func (c *Classifier) Layout() Layout {
	out := c.layout
	out.Candidates = append([]Range(nil), c.layout.Candidates...)
	return out
}

// Classify decides the code kind from the character count of raw alone.
// Manual wins if both lengths coincide, which Validate never allows.
func (c *Classifier) Classify(raw string) Kind {
	switch utf8.RuneCountInString(raw) {
	case c.layout.ManualLength:
		return KindManual
	case c.layout.ProcessLength:
		return KindProcess
	default:
		return KindUnknown
	}
}

// ExtractManual returns the leading payload of a digits-only manual code.
func (c *Classifier) ExtractManual(raw string) (ExtractedManual, error) {
	if n := utf8.RuneCountInString(raw); n != c.layout.ManualLength {
		return ExtractedManual{}, fmt.Errorf("%w: manual code has %d characters, want %d", ErrFormat, n, c.layout.ManualLength)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return ExtractedManual{}, fmt.Errorf("%w: manual code contains non-digit at offset %d", ErrFormat, i)
		}
	}
	// All bytes are ASCII digits here, so byte and character offsets agree.
	return ExtractedManual{Payload: raw[:c.layout.ManualDataLength]}, nil
}

// ExtractProcess slices candidates and auxiliary fields from a process code.
func (c *Classifier) ExtractProcess(raw string) (ExtractedProcess, error) {
	chars := []rune(raw)
	if len(chars) != c.layout.ProcessLength {
		return ExtractedProcess{}, fmt.Errorf("%w: process code has %d characters, want %d", ErrFormat, len(chars), c.layout.ProcessLength)
	}
	candidates := make([]string, 0, len(c.layout.Candidates))
	for _, r := range c.layout.Candidates {
		candidates = append(candidates, slice(chars, r))
	}
	return ExtractedProcess{
		Candidates: candidates,
		SiteCode:   slice(chars, c.layout.SiteCode),
		OrderNo:    slice(chars, c.layout.OrderNo),
		DispatchNo: slice(chars, c.layout.DispatchNo),
	}, nil
}

func slice(chars []rune, r Range) string {
	return string(chars[r.Start:r.End])
}
