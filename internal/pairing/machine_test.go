package pairing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"qrassure/internal/logging"
	"qrassure/internal/outcome"
	"qrassure/internal/qrcode"
	"qrassure/internal/scanner"
)

// scanResult is one scripted ReadLine result.
type scanResult struct {
	raw string
	err error
}

// fakeScanner replays scripted reads, then reports ErrNoData. A hook can run
// before each read to advance the clock.
type fakeScanner struct {
	reads  []scanResult
	before func()
}

func (s *fakeScanner) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.before != nil {
		s.before()
	}
	if len(s.reads) == 0 {
		return "", scanner.ErrNoData
	}
	next := s.reads[0]
	s.reads = s.reads[1:]
	return next.raw, next.err
}

type fakeIndicator struct {
	mu      sync.Mutex
	success int
	errors  int
	waiting int
	failErr error
	block   bool
}

func (f *fakeIndicator) play(ctx context.Context, counter *int) error {
	f.mu.Lock()
	*counter++
	block, failErr := f.block, f.failErr
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return failErr
}

func (f *fakeIndicator) SignalSuccess(ctx context.Context) error { return f.play(ctx, &f.success) }
func (f *fakeIndicator) SignalError(ctx context.Context) error   { return f.play(ctx, &f.errors) }
func (f *fakeIndicator) SignalWaiting(ctx context.Context) error { return f.play(ctx, &f.waiting) }

type captureRecorder struct {
	records []outcome.Record
}

func (c *captureRecorder) Record(_ context.Context, rec outcome.Record) {
	c.records = append(c.records, rec)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	machine   *Machine
	scanner   *fakeScanner
	indicator *fakeIndicator
	recorder  *captureRecorder
	clock     *fakeClock
}

func testLayout() qrcode.Layout {
	return qrcode.Layout{
		ManualLength:     11,
		ManualDataLength: 10,
		ProcessLength:    40,
		Candidates:       []qrcode.Range{{Start: 20, End: 30}, {Start: 30, End: 40}},
		SiteCode:         qrcode.Range{Start: 0, End: 4},
		OrderNo:          qrcode.Range{Start: 4, End: 12},
		DispatchNo:       qrcode.Range{Start: 12, End: 20},
	}
}

// processCode builds a 40-character process code with the given fields.
func processCode(site, order, dispatch, primary, secondary string) string {
	buf := []byte(strings.Repeat("-", 40))
	copy(buf[0:4], site)
	copy(buf[4:12], order)
	copy(buf[12:20], dispatch)
	copy(buf[20:30], primary)
	copy(buf[30:40], secondary)
	return string(buf)
}

func newHarness(t *testing.T, reads ...scanResult) *harness {
	t.Helper()
	classifier, err := qrcode.NewClassifier(testLayout())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	h := &harness{
		scanner:   &fakeScanner{reads: reads},
		indicator: &fakeIndicator{},
		recorder:  &captureRecorder{},
		clock:     &fakeClock{now: time.Date(2025, time.March, 24, 9, 0, 0, 0, time.Local)},
	}
	ids := 0
	h.machine = New(classifier, h.scanner, h.indicator, h.recorder, Options{
		TerminalID: "T01",
		Timeout:    10 * time.Second,
		Now:        h.clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("attempt-%d", ids)
		},
	}, logging.NewNop())
	return h
}

func scans(values ...string) []scanResult {
	out := make([]scanResult, len(values))
	for i, v := range values {
		out[i] = scanResult{raw: v}
	}
	return out
}

func (h *harness) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := h.machine.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
}

const manualCode = "12345678909"

func TestMatchRecordsOnceAndSignalsSuccess(t *testing.T) {
	process := processCode("S001", "ORD00001", "DSP00001", "1234567890", "0000000000")
	h := newHarness(t, scans(manualCode, process)...)

	h.step(t, 1)
	if h.machine.State() != StateAwaitingSecond {
		t.Fatalf("state after first scan = %v", h.machine.State())
	}
	h.step(t, 1)

	if h.machine.State() != StateAwaitingFirst {
		t.Fatalf("state after pair = %v", h.machine.State())
	}
	if len(h.recorder.records) != 1 {
		t.Fatalf("records = %d, want 1", len(h.recorder.records))
	}
	rec := h.recorder.records[0]
	if rec.Result != outcome.ResultMatch || rec.SiteCode != "S001" || rec.OrderNo != "ORD00001" ||
		rec.DispatchNo != "DSP00001" || rec.TerminalID != "T01" || rec.AttemptID != "attempt-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if h.indicator.success != 1 || h.indicator.errors != 0 {
		t.Fatalf("success=%d errors=%d", h.indicator.success, h.indicator.errors)
	}
	if h.indicator.waiting != 2 {
		t.Fatalf("waiting pulses = %d, want 2", h.indicator.waiting)
	}
}

func TestMatchOnSecondaryCandidateInEitherOrder(t *testing.T) {
	process := processCode("S002", "ORD00002", "DSP00002", "9999999999", "1234567890")
	h := newHarness(t, scans(process, manualCode)...)
	h.step(t, 2)

	if len(h.recorder.records) != 1 || h.recorder.records[0].Result != outcome.ResultMatch {
		t.Fatalf("unexpected records %+v", h.recorder.records)
	}
	if h.recorder.records[0].SiteCode != "S002" {
		t.Fatalf("auxiliary fields must come from the process code: %+v", h.recorder.records[0])
	}
}

func TestMismatchRecordsAndSignalsError(t *testing.T) {
	process := processCode("S001", "ORD00001", "DSP00001", "5555555555", "6666666666")
	h := newHarness(t, scans(manualCode, process)...)
	h.step(t, 2)

	if len(h.recorder.records) != 1 || h.recorder.records[0].Result != outcome.ResultMismatch {
		t.Fatalf("unexpected records %+v", h.recorder.records)
	}
	if h.indicator.errors != 1 || h.indicator.success != 0 {
		t.Fatalf("success=%d errors=%d", h.indicator.success, h.indicator.errors)
	}
	if h.machine.State() != StateAwaitingFirst {
		t.Fatalf("state = %v", h.machine.State())
	}
}

func TestSameKindRepeatRejectsWithoutRecord(t *testing.T) {
	h := newHarness(t, scans(manualCode, "98765432101")...)
	h.step(t, 2)

	if len(h.recorder.records) != 0 {
		t.Fatalf("expected no records, got %+v", h.recorder.records)
	}
	if h.indicator.errors != 1 {
		t.Fatalf("error signals = %d, want 1", h.indicator.errors)
	}
	if h.machine.State() != StateAwaitingFirst {
		t.Fatalf("state = %v", h.machine.State())
	}
	if got := h.machine.Snapshot().Counters.Rejects; got != 1 {
		t.Fatalf("rejects = %d", got)
	}
}

func TestTimeoutResetsSilently(t *testing.T) {
	process := processCode("S001", "ORD00001", "DSP00001", "1234567890", "")
	h := newHarness(t, scans(manualCode)...)
	h.step(t, 1)

	// Exactly at the timeout the attempt is still open.
	h.clock.Advance(10 * time.Second)
	h.step(t, 1)
	if h.machine.State() != StateAwaitingSecond {
		t.Fatalf("attempt closed at the timeout boundary")
	}

	h.clock.Advance(time.Millisecond)
	h.scanner.reads = scans(process)
	h.step(t, 1)

	if h.machine.State() != StateAwaitingFirst {
		t.Fatalf("state = %v", h.machine.State())
	}
	if len(h.recorder.records) != 0 || h.indicator.errors != 0 || h.indicator.success != 0 {
		t.Fatalf("timeout produced output: records=%v success=%d errors=%d",
			h.recorder.records, h.indicator.success, h.indicator.errors)
	}
	if len(h.scanner.reads) != 1 {
		t.Fatal("expired attempt should not consume the next scan")
	}
	if got := h.machine.Snapshot().Counters.Timeouts; got != 1 {
		t.Fatalf("timeouts = %d", got)
	}
}

func TestUnknownSecondScanRecordsRaw(t *testing.T) {
	raw := "ABCDE"
	h := newHarness(t, scans(manualCode, raw)...)
	h.step(t, 2)

	if len(h.recorder.records) != 1 {
		t.Fatalf("records = %d, want 1", len(h.recorder.records))
	}
	rec := h.recorder.records[0]
	if rec.Result != outcome.ResultUnknown || rec.Raw != raw {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.SiteCode != outcome.NotAvailable || rec.OrderNo != outcome.NotAvailable || rec.DispatchNo != outcome.NotAvailable {
		t.Fatalf("auxiliary fields should be N/A: %+v", rec)
	}
	if h.indicator.errors != 0 || h.indicator.success != 0 {
		t.Fatal("unknown second scan must not signal")
	}
	if h.machine.State() != StateAwaitingFirst {
		t.Fatalf("state = %v", h.machine.State())
	}
}

func TestFirstScanDiscards(t *testing.T) {
	h := newHarness(t, scans("short", "1234567890X")...)
	h.step(t, 2)

	if h.machine.State() != StateAwaitingFirst {
		t.Fatalf("state = %v", h.machine.State())
	}
	if len(h.recorder.records) != 0 || h.indicator.waiting != 0 {
		t.Fatal("discarded first scans must not record or signal")
	}
	if got := h.machine.Snapshot().Counters.Discarded; got != 2 {
		t.Fatalf("discarded = %d", got)
	}
}

func TestMalformedSecondScanKeepsAttemptOpen(t *testing.T) {
	process := processCode("S001", "ORD00001", "DSP00001", "1234567890", "")
	h := newHarness(t, scans(process, "1234X678909")...)
	h.step(t, 1)
	opened := h.machine.Snapshot().OpenedAt

	h.clock.Advance(3 * time.Second)
	h.step(t, 1)

	snap := h.machine.Snapshot()
	if snap.State != StateAwaitingSecond || !snap.OpenedAt.Equal(opened) {
		t.Fatalf("expected open attempt with original deadline, got %+v", snap)
	}
	if len(h.recorder.records) != 0 || h.indicator.errors != 0 {
		t.Fatal("malformed second scan must not record or signal")
	}

	h.scanner.reads = scans(manualCode)
	h.step(t, 1)
	if len(h.recorder.records) != 1 || h.recorder.records[0].Result != outcome.ResultMatch {
		t.Fatalf("expected match after retry, got %+v", h.recorder.records)
	}
}

func TestNoDataKeepsAwaitingSecond(t *testing.T) {
	h := newHarness(t, scans(manualCode)...)
	h.step(t, 4)

	if h.machine.State() != StateAwaitingSecond {
		t.Fatalf("state = %v", h.machine.State())
	}
	if len(h.recorder.records) != 0 {
		t.Fatal("empty reads must not be recorded")
	}
}

func TestReadErrorsTreatedAsNoData(t *testing.T) {
	h := newHarness(t, scanResult{err: errors.New("input/output error")}, scanResult{raw: manualCode})
	h.step(t, 2)

	snap := h.machine.Snapshot()
	if snap.State != StateAwaitingSecond || snap.Counters.ReadErrors != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestIndicatorFailureDoesNotChangeOutcome(t *testing.T) {
	process := processCode("S001", "ORD00001", "DSP00001", "1234567890", "")
	h := newHarness(t, scans(manualCode, process)...)
	h.indicator.failErr = errors.New("gpio busy")
	h.step(t, 2)

	if len(h.recorder.records) != 1 || h.recorder.records[0].Result != outcome.ResultMatch {
		t.Fatalf("unexpected records %+v", h.recorder.records)
	}
	if h.machine.State() != StateAwaitingFirst {
		t.Fatalf("state = %v", h.machine.State())
	}
}

func TestCancellationDuringSignalRecordsOutcome(t *testing.T) {
	process := processCode("S001", "ORD00001", "DSP00001", "1234567890", "")
	h := newHarness(t, scans(manualCode, process)...)
	h.step(t, 1)

	h.indicator.mu.Lock()
	h.indicator.block = true
	h.indicator.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.machine.Step(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	// Cancelled during the waiting pulse before the second read.
	if len(h.recorder.records) != 0 || h.machine.State() != StateAwaitingSecond {
		t.Fatalf("unexpected state after cancel: records=%v state=%v", h.recorder.records, h.machine.State())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	process := processCode("S001", "ORD00001", "DSP00001", "1234567890", "")
	h := newHarness(t, scans(manualCode, process)...)
	ctx, cancel := context.WithCancel(context.Background())
	h.scanner.before = func() {
		if len(h.scanner.reads) == 0 {
			cancel()
		}
	}

	done := make(chan error, 1)
	go func() { done <- h.machine.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if len(h.recorder.records) != 1 {
		t.Fatalf("records = %d, want 1", len(h.recorder.records))
	}
}

func TestSnapshotReportsPendingAttempt(t *testing.T) {
	h := newHarness(t, scans(manualCode)...)
	h.step(t, 1)

	snap := h.machine.Snapshot()
	if snap.State != StateAwaitingSecond || snap.PendingKind != qrcode.KindManual ||
		snap.AttemptID != "attempt-1" || snap.TerminalID != "T01" || snap.Counters.Scans != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Last != nil {
		t.Fatal("no outcome recorded yet")
	}
}
