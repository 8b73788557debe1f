package outcome

import (
	"context"
	"time"
)

// NotAvailable fills auxiliary fields that an unknown scan cannot provide.
const NotAvailable = "N/A"

// Result is the resolution of a pairing attempt.
type Result int

const (
	ResultMatch Result = iota + 1
	ResultMismatch
	// ResultUnknown means the second scan matched no known code length; the
	// raw scan text is journaled in place of a result label.
	ResultUnknown
)

func (r Result) String() string {
	switch r {
	case ResultMatch:
		return "match"
	case ResultMismatch:
		return "mismatch"
	case ResultUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// ParseResult is the inverse of Result.String.
func ParseResult(value string) (Result, bool) {
	switch value {
	case "match":
		return ResultMatch, true
	case "mismatch":
		return ResultMismatch, true
	case "unknown":
		return ResultUnknown, true
	default:
		return 0, false
	}
}

// Record is one resolved or unknown-terminated pairing attempt.
type Record struct {
	Timestamp  time.Time
	SiteCode   string
	TerminalID string
	OrderNo    string
	DispatchNo string
	Result     Result
	// Raw holds the unrecognized scan for ResultUnknown.
	Raw       string
	AttemptID string
}

// Recorder persists outcome records. Implementations report their own
// failures; callers never see an error.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// Fanout forwards each record to every recorder in order.
type Fanout []Recorder

// Record implements Recorder.
func (f Fanout) Record(ctx context.Context, rec Record) {
	for _, r := range f {
		if r != nil {
			r.Record(ctx, rec)
		}
	}
}
