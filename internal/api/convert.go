package api

import (
	"time"

	"qrassure/internal/history"
	"qrassure/internal/pairing"
	"qrassure/internal/preflight"
	"qrassure/internal/qrcode"
)

// FromSnapshot converts a pairing snapshot to its API representation.
func FromSnapshot(snap pairing.Snapshot) PairingStatus {
	dto := PairingStatus{
		TerminalID: snap.TerminalID,
		State:      snap.State.String(),
		Counters: map[string]int{
			"scans":      snap.Counters.Scans,
			"discarded":  snap.Counters.Discarded,
			"readErrors": snap.Counters.ReadErrors,
			"matches":    snap.Counters.Matches,
			"mismatches": snap.Counters.Mismatches,
			"unknown":    snap.Counters.Unknown,
			"rejects":    snap.Counters.Rejects,
			"timeouts":   snap.Counters.Timeouts,
		},
	}
	if snap.State == pairing.StateAwaitingSecond && snap.PendingKind != qrcode.KindUnknown {
		dto.PendingKind = snap.PendingKind.String()
		dto.OpenedAt = FormatTime(snap.OpenedAt)
		dto.AttemptID = snap.AttemptID
	}
	if snap.Last != nil {
		dto.LastResult = snap.Last.Result.String()
		dto.LastAt = FormatTime(snap.Last.At)
	}
	return dto
}

// FromSummary converts a history summary.
func FromSummary(summary history.Summary) OutcomeSummary {
	return OutcomeSummary{
		Since:    FormatTime(summary.Since),
		Match:    summary.Match,
		Mismatch: summary.Mismatch,
		Unknown:  summary.Unknown,
		Total:    summary.Total(),
		Last:     FormatTime(summary.Last),
	}
}

// FromEntries converts indexed outcomes, preserving order.
func FromEntries(entries []history.Entry) []Outcome {
	out := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		out = append(out, Outcome{
			ID:         e.ID,
			AttemptID:  e.AttemptID,
			RecordedAt: FormatTime(e.RecordedAt),
			TerminalID: e.TerminalID,
			SiteCode:   e.SiteCode,
			OrderNo:    e.OrderNo,
			DispatchNo: e.DispatchNo,
			Result:     e.Result.String(),
			Raw:        e.Raw,
		})
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, 0, len(results))
	for _, r := range results {
		out = append(out, CheckStatus{Name: r.Name, Passed: r.Passed, Optional: r.Optional, Detail: r.Detail})
	}
	return out
}

// ParseTime parses an API timestamp. Empty or malformed values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// FormatTime renders ts in the API timestamp format; the zero time renders empty.
func FormatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}
