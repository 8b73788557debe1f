package pairing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"qrassure/internal/config"
	"qrassure/internal/logging"
	"qrassure/internal/outcome"
	"qrassure/internal/qrcode"
	"qrassure/internal/scanner"
)

// Scanner yields one scan per call or scanner.ErrNoData when nothing arrived.
type Scanner interface {
	ReadLine(ctx context.Context) (string, error)
}

// Indicator plays operator feedback patterns.
type Indicator interface {
	SignalSuccess(ctx context.Context) error
	SignalError(ctx context.Context) error
	SignalWaiting(ctx context.Context) error
}

// State is the pairing protocol state.
type State int

const (
	StateAwaitingFirst State = iota
	StateAwaitingSecond
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirst:
		return "awaiting_first"
	case StateAwaitingSecond:
		return "awaiting_second"
	default:
		return "unknown"
	}
}

// Pending is the first scan of an open attempt. Exactly one of Manual and
// Process is set, matching Kind.
type Pending struct {
	Kind      qrcode.Kind
	Manual    *qrcode.ExtractedManual
	Process   *qrcode.ExtractedProcess
	OpenedAt  time.Time
	AttemptID string
}

// Options are the fixed machine parameters.
type Options struct {
	TerminalID string
	Timeout    time.Duration
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// OptionsFromConfig extracts the machine options from a validated config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TerminalID: cfg.Terminal.ID,
		Timeout:    cfg.PairingTimeout(),
	}
}

// Machine is the pairing state machine. Step and Run must be called from a
// single goroutine; Snapshot may be called from any goroutine.
type Machine struct {
	classifier *qrcode.Classifier
	scanner    Scanner
	indicator  Indicator
	recorder   outcome.Recorder
	opts       Options
	logger     *slog.Logger

	readFailing bool

	mu       sync.Mutex
	state    State
	pending  *Pending
	counters Counters
	last     *LastOutcome
}

// New wires a machine in StateAwaitingFirst.
func New(classifier *qrcode.Classifier, scan Scanner, ind Indicator, rec outcome.Recorder, opts Options, logger *slog.Logger) *Machine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Machine{
		classifier: classifier,
		scanner:    scan,
		indicator:  ind,
		recorder:   rec,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "pairing"),
		state:      StateAwaitingFirst,
	}
}

// Run steps the machine until ctx is cancelled. It returns nil on cancellation.
func (m *Machine) Run(ctx context.Context) error {
	m.logger.Info("pairing loop started",
		logging.String("terminal_id", m.opts.TerminalID),
		logging.Duration("timeout", m.opts.Timeout),
	)
	for {
		if err := m.Step(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Info("pairing loop stopped", logging.String(logging.FieldState, m.State().String()))
				return nil
			}
			return err
		}
	}
}

// Step runs one iteration of the protocol. It returns only context errors.
func (m *Machine) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch m.State() {
	case StateAwaitingSecond:
		return m.stepSecond(ctx)
	default:
		return m.stepFirst(ctx)
	}
}

// State returns the current protocol state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) stepFirst(ctx context.Context) error {
	raw, ok, err := m.read(ctx)
	if err != nil || !ok {
		return err
	}

	pending := &Pending{Kind: m.classifier.Classify(raw)}
	switch pending.Kind {
	case qrcode.KindManual:
		extracted, err := m.classifier.ExtractManual(raw)
		if err != nil {
			m.discard(raw, pending.Kind, err)
			return nil
		}
		pending.Manual = &extracted
	case qrcode.KindProcess:
		extracted, err := m.classifier.ExtractProcess(raw)
		if err != nil {
			m.discard(raw, pending.Kind, err)
			return nil
		}
		pending.Process = &extracted
	default:
		m.discard(raw, pending.Kind, nil)
		return nil
	}

	pending.OpenedAt = m.opts.Now()
	pending.AttemptID = m.opts.NewID()
	m.mu.Lock()
	m.state = StateAwaitingSecond
	m.pending = pending
	m.mu.Unlock()

	m.logger.Info("first scan accepted",
		logging.String(logging.FieldAttemptID, pending.AttemptID),
		logging.String(logging.FieldCodeKind, pending.Kind.String()),
		logging.String(logging.FieldEventType, "first_scan_accepted"),
	)
	return m.signal(ctx, "waiting", pending.AttemptID, m.indicator.SignalWaiting)
}

func (m *Machine) stepSecond(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if pending == nil {
		m.reset()
		return nil
	}

	if age := m.opts.Now().Sub(pending.OpenedAt); age > m.opts.Timeout {
		m.reset()
		m.count(func(c *Counters) { c.Timeouts++ })
		m.logger.Debug("pairing attempt expired",
			logging.String(logging.FieldAttemptID, pending.AttemptID),
			logging.Duration("age", age),
			logging.String(logging.FieldEventType, "pairing_timeout"),
		)
		return nil
	}

	if err := m.signal(ctx, "waiting", pending.AttemptID, m.indicator.SignalWaiting); err != nil {
		return err
	}

	raw, ok, err := m.read(ctx)
	if err != nil || !ok {
		return err
	}

	kind := m.classifier.Classify(raw)
	switch {
	case kind == qrcode.KindUnknown:
		return m.resolveUnknown(ctx, pending, raw)
	case kind == pending.Kind:
		return m.rejectRepeat(ctx, pending)
	}

	var (
		manual  qrcode.ExtractedManual
		process qrcode.ExtractedProcess
	)
	if kind == qrcode.KindManual {
		manual, err = m.classifier.ExtractManual(raw)
		if pending.Process != nil {
			process = *pending.Process
		}
	} else {
		process, err = m.classifier.ExtractProcess(raw)
		if pending.Manual != nil {
			manual = *pending.Manual
		}
	}
	if err != nil {
		// The attempt stays open with its original deadline.
		m.discard(raw, kind, err)
		return nil
	}

	return m.resolvePair(ctx, pending, manual, process)
}

func (m *Machine) resolvePair(ctx context.Context, pending *Pending, manual qrcode.ExtractedManual, process qrcode.ExtractedProcess) error {
	result := outcome.ResultMismatch
	if qrcode.Matches(manual.Payload, process.Candidates) {
		result = outcome.ResultMatch
	}

	rec := outcome.Record{
		Timestamp:  m.opts.Now(),
		SiteCode:   process.SiteCode,
		TerminalID: m.opts.TerminalID,
		OrderNo:    process.OrderNo,
		DispatchNo: process.DispatchNo,
		Result:     result,
		AttemptID:  pending.AttemptID,
	}
	m.finish(ctx, rec)

	m.logger.Info("pair resolved",
		logging.String(logging.FieldAttemptID, pending.AttemptID),
		logging.String("result", result.String()),
		logging.String("order_no", process.OrderNo),
		logging.String("dispatch_no", process.DispatchNo),
		logging.String(logging.FieldEventType, "pair_resolved"),
	)

	if result == outcome.ResultMatch {
		return m.signal(ctx, "success", pending.AttemptID, m.indicator.SignalSuccess)
	}
	return m.signal(ctx, "error", pending.AttemptID, m.indicator.SignalError)
}

func (m *Machine) resolveUnknown(ctx context.Context, pending *Pending, raw string) error {
	rec := outcome.Record{
		Timestamp:  m.opts.Now(),
		SiteCode:   outcome.NotAvailable,
		TerminalID: m.opts.TerminalID,
		OrderNo:    outcome.NotAvailable,
		DispatchNo: outcome.NotAvailable,
		Result:     outcome.ResultUnknown,
		Raw:        raw,
		AttemptID:  pending.AttemptID,
	}
	m.finish(ctx, rec)

	m.logger.Info("unrecognized second scan recorded",
		logging.String(logging.FieldAttemptID, pending.AttemptID),
		logging.Int("length", len([]rune(raw))),
		logging.String(logging.FieldEventType, "unknown_second_scan"),
	)
	return nil
}

func (m *Machine) rejectRepeat(ctx context.Context, pending *Pending) error {
	m.reset()
	m.count(func(c *Counters) { c.Rejects++ })

	m.logger.Info("same code kind scanned twice; attempt rejected",
		logging.String(logging.FieldAttemptID, pending.AttemptID),
		logging.String(logging.FieldCodeKind, pending.Kind.String()),
		logging.String(logging.FieldEventType, "same_kind_repeat"),
	)
	return m.signal(ctx, "error", pending.AttemptID, m.indicator.SignalError)
}

// finish records rec once and returns the machine to StateAwaitingFirst
// before any indicator pattern runs.
func (m *Machine) finish(ctx context.Context, rec outcome.Record) {
	if m.recorder != nil {
		m.recorder.Record(context.WithoutCancel(ctx), rec)
	}

	m.mu.Lock()
	m.state = StateAwaitingFirst
	m.pending = nil
	switch rec.Result {
	case outcome.ResultMatch:
		m.counters.Matches++
	case outcome.ResultMismatch:
		m.counters.Mismatches++
	case outcome.ResultUnknown:
		m.counters.Unknown++
	}
	m.last = &LastOutcome{Result: rec.Result, At: rec.Timestamp, AttemptID: rec.AttemptID}
	m.mu.Unlock()
}

func (m *Machine) reset() {
	m.mu.Lock()
	m.state = StateAwaitingFirst
	m.pending = nil
	m.mu.Unlock()
}

func (m *Machine) count(update func(*Counters)) {
	m.mu.Lock()
	update(&m.counters)
	m.mu.Unlock()
}

// read returns ok=false when no scan is available. Only context errors are returned.
func (m *Machine) read(ctx context.Context) (string, bool, error) {
	raw, err := m.scanner.ReadLine(ctx)
	if err == nil {
		if m.readFailing {
			m.readFailing = false
			m.logger.Info("scanner reads recovered", logging.String(logging.FieldEventType, "serial_read_recovered"))
		}
		m.count(func(c *Counters) { c.Scans++ })
		return raw, true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", false, ctxErr
	}
	if errors.Is(err, scanner.ErrNoData) {
		return "", false, nil
	}

	m.count(func(c *Counters) { c.ReadErrors++ })
	if m.readFailing {
		m.logger.Debug("scanner read failed", logging.Error(err))
		return "", false, nil
	}
	m.readFailing = true
	logging.WarnWithContext(m.logger, "scanner read failed", "serial_read_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the scanner cable and serial device permissions"),
		logging.String(logging.FieldImpact, "scans are ignored until the port recovers"),
	)
	return "", false, nil
}

func (m *Machine) discard(raw string, kind qrcode.Kind, err error) {
	m.count(func(c *Counters) { c.Discarded++ })
	attrs := []logging.Attr{
		logging.String(logging.FieldCodeKind, kind.String()),
		logging.Int("length", len([]rune(raw))),
		logging.String(logging.FieldState, m.State().String()),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	m.logger.Debug("scan discarded", logging.Args(attrs...)...)
}

// signal plays a pattern. Indicator failures are logged and never change the
// protocol; only cancellation is returned.
func (m *Machine) signal(ctx context.Context, pattern, attemptID string, play func(context.Context) error) error {
	err := play(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		logging.WarnWithContext(m.logger, "indicator pattern failed", "indicator_failed",
			logging.Error(err),
			logging.String("pattern", pattern),
			logging.String(logging.FieldAttemptID, attemptID),
			logging.String(logging.FieldErrorHint, "check the indicator wiring and gpio permissions"),
			logging.String(logging.FieldImpact, "operator feedback missing; outcome still recorded"),
		)
	}
	return nil
}
