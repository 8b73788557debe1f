package pairing

import (
	"time"

	"qrassure/internal/outcome"
	"qrassure/internal/qrcode"
)

// Counters tally scans and outcomes since the machine started.
type Counters struct {
	Scans      int
	Discarded  int
	ReadErrors int
	Matches    int
	Mismatches int
	Unknown    int
	Rejects    int
	Timeouts   int
}

// LastOutcome describes the most recently recorded outcome.
type LastOutcome struct {
	Result    outcome.Result
	At        time.Time
	AttemptID string
}

// Snapshot is a point-in-time copy of the machine state.
type Snapshot struct {
	TerminalID  string
	State       State
	PendingKind qrcode.Kind
	OpenedAt    time.Time
	AttemptID   string
	Counters    Counters
	Last        *LastOutcome
}

// Snapshot returns a copy of the current state. Safe for concurrent use.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		TerminalID:  m.opts.TerminalID,
		State:       m.state,
		PendingKind: qrcode.KindUnknown,
		Counters:    m.counters,
	}
	if m.pending != nil {
		snap.PendingKind = m.pending.Kind
		snap.OpenedAt = m.pending.OpenedAt
		snap.AttemptID = m.pending.AttemptID
	}
	if m.last != nil {
		last := *m.last
		snap.Last = &last
	}
	return snap
}
