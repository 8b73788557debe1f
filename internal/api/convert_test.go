package api

import (
	"testing"
	"time"

	"qrassure/internal/history"
	"qrassure/internal/outcome"
	"qrassure/internal/pairing"
	"qrassure/internal/qrcode"
)

func TestFromSnapshotPendingAttempt(t *testing.T) {
	opened := time.Date(2025, time.March, 24, 9, 0, 0, 0, time.UTC)
	dto := FromSnapshot(pairing.Snapshot{
		TerminalID:  "T01",
		State:       pairing.StateAwaitingSecond,
		PendingKind: qrcode.KindManual,
		OpenedAt:    opened,
		AttemptID:   "abc",
		Counters:    pairing.Counters{Scans: 3, Matches: 1},
		Last:        &pairing.LastOutcome{Result: outcome.ResultMatch, At: opened.Add(-time.Minute)},
	})

	if dto.State != "awaiting_second" || dto.PendingKind != "manual" || dto.AttemptID != "abc" {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.OpenedAt != "2025-03-24T09:00:00.000Z" {
		t.Fatalf("openedAt = %q", dto.OpenedAt)
	}
	if dto.Counters["scans"] != 3 || dto.Counters["matches"] != 1 {
		t.Fatalf("counters = %v", dto.Counters)
	}
	if dto.LastResult != "match" || !ParseTime(dto.LastAt).Equal(opened.Add(-time.Minute)) {
		t.Fatalf("last = %q at %q", dto.LastResult, dto.LastAt)
	}
}

func TestFromSnapshotIdle(t *testing.T) {
	dto := FromSnapshot(pairing.Snapshot{State: pairing.StateAwaitingFirst})
	if dto.PendingKind != "" || dto.OpenedAt != "" || dto.LastResult != "" {
		t.Fatalf("idle snapshot should omit pending fields: %+v", dto)
	}
}

func TestFromSummaryAndEntries(t *testing.T) {
	summary := FromSummary(history.Summary{Match: 2, Mismatch: 1, Unknown: 1})
	if summary.Total != 4 || summary.Since != "" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	entries := FromEntries([]history.Entry{
		{ID: 2, Result: outcome.ResultUnknown, Raw: "XYZ", SiteCode: outcome.NotAvailable},
		{ID: 1, Result: outcome.ResultMismatch},
	})
	if len(entries) != 2 || entries[0].Result != "unknown" || entries[0].Raw != "XYZ" || entries[1].ID != 1 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
