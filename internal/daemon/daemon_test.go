package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"qrassure/internal/api"
	"qrassure/internal/config"
	"qrassure/internal/daemon"
	"qrassure/internal/history"
	"qrassure/internal/logging"
	"qrassure/internal/qrcode"
	"qrassure/internal/scanner"
	"qrassure/internal/testsupport"
)

const (
	manualCode = "12345678909"
	testToken  = "secret-token"
)

// processCode builds a default-layout process code whose candidate field
// carries payload.
func processCode(payload string) string {
	buf := []byte(strings.Repeat("0", 300))
	copy(buf[0:4], "S001")
	copy(buf[4:14], "ORD0000001")
	copy(buf[14:24], "DSP0000001")
	copy(buf[47:57], payload)
	return string(buf)
}

type scriptedScanner struct {
	mu     sync.Mutex
	lines  []string
	stale  int
	closed bool
}

func (s *scriptedScanner) ReadLine(ctx context.Context) (string, error) {
	s.mu.Lock()
	if len(s.lines) > 0 {
		line := s.lines[0]
		s.lines = s.lines[1:]
		s.mu.Unlock()
		return line, nil
	}
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Millisecond):
		return "", scanner.ErrNoData
	}
}

func (s *scriptedScanner) MarkStale() {
	s.mu.Lock()
	s.stale++
	s.mu.Unlock()
}

func (s *scriptedScanner) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *scriptedScanner) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type countingIndicator struct {
	mu       sync.Mutex
	success  int
	errors   int
	waiting  int
	tornDown bool
}

func (c *countingIndicator) bump(counter *int) error {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
	return nil
}

func (c *countingIndicator) SignalSuccess(context.Context) error { return c.bump(&c.success) }
func (c *countingIndicator) SignalError(context.Context) error   { return c.bump(&c.errors) }
func (c *countingIndicator) SignalWaiting(context.Context) error { return c.bump(&c.waiting) }

func (c *countingIndicator) Teardown() error {
	c.mu.Lock()
	c.tornDown = true
	c.mu.Unlock()
	return nil
}

func (c *countingIndicator) snapshot() (success int, tornDown bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.success, c.tornDown
}

type fixture struct {
	cfg       *config.Config
	scanner   *scriptedScanner
	indicator *countingIndicator
	store     *history.Store
}

func newFixture(t *testing.T, lines ...string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testToken))
	store, err := history.Open(context.Background(), cfg.HistoryPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return &fixture{
		cfg:       cfg,
		scanner:   &scriptedScanner{lines: lines},
		indicator: &countingIndicator{},
		store:     store,
	}
}

func (f *fixture) build(t *testing.T) daemon.Builder {
	return func(context.Context) (daemon.Components, error) {
		classifier, err := qrcode.NewClassifier(f.cfg.CodeLayout())
		if err != nil {
			t.Fatalf("NewClassifier: %v", err)
		}
		return daemon.Components{
			Classifier: classifier,
			Scanner:    f.scanner,
			Indicator:  f.indicator,
			Recorder:   f.store,
			History:    f.store,
		}, nil
	}
}

func startDaemon(t *testing.T, d *daemon.Daemon, build daemon.Builder) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, build) }()
	waitFor(t, func() bool { return d.APIAddr() != "" })
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	})
	return cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func getJSON(t *testing.T, url, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestRunPairsScansAndServesStatus(t *testing.T) {
	f := newFixture(t, manualCode, processCode("1234567890"))
	d, err := daemon.New(f.cfg, logging.NewNop(), "/var/log/qrassure.log")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cancel, done := startDaemon(t, d, f.build(t))

	waitFor(t, func() bool {
		success, _ := f.indicator.snapshot()
		return success == 1
	})

	base := "http://" + d.APIAddr()
	var status api.DaemonStatus
	if code := getJSON(t, base+"/api/status", testToken, &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.Pairing.TerminalID != "T99" || status.Pairing.State != "awaiting_first" {
		t.Fatalf("unexpected pairing status: %+v", status.Pairing)
	}
	if status.Pairing.Counters["matches"] != 1 {
		t.Fatalf("matches = %d, want 1", status.Pairing.Counters["matches"])
	}
	if status.Today == nil || status.Today.Match != 1 || status.Today.Total != 1 {
		t.Fatalf("unexpected today summary: %+v", status.Today)
	}
	if status.LogPath != "/var/log/qrassure.log" || status.LockFilePath != f.cfg.LockPath() {
		t.Fatalf("unexpected paths: %+v", status)
	}
	if len(status.Checks) == 0 {
		t.Fatal("expected preflight checks in status")
	}

	var list api.OutcomeListResponse
	if code := getJSON(t, base+"/api/outcomes?limit=5", testToken, &list); code != http.StatusOK {
		t.Fatalf("outcomes code = %d", code)
	}
	if len(list.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(list.Outcomes))
	}
	got := list.Outcomes[0]
	if got.Result != "match" || got.SiteCode != "S001" || got.OrderNo != "ORD0000001" || got.DispatchNo != "DSP0000001" {
		t.Fatalf("unexpected outcome: %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if _, tornDown := f.indicator.snapshot(); !tornDown {
		t.Fatal("expected indicator teardown on stop")
	}
	if !f.scanner.isClosed() {
		t.Fatal("expected scanner closed on stop")
	}
	if d.Running() {
		t.Fatal("expected daemon stopped")
	}
}

func TestRunRejectsSecondInstance(t *testing.T) {
	f := newFixture(t)
	first, err := daemon.New(f.cfg, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startDaemon(t, first, f.build(t))

	second, err := daemon.New(f.cfg, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	built := false
	err = second.Run(context.Background(), func(context.Context) (daemon.Components, error) {
		built = true
		return daemon.Components{}, nil
	})
	if !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if built {
		t.Fatal("builder must not run without the instance lock")
	}
}

func TestRunBuilderFailureReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	boom := errors.New("serial port missing")
	err = d.Run(context.Background(), func(context.Context) (daemon.Components, error) {
		return daemon.Components{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected builder error, got %v", err)
	}

	probe := flock.New(cfg.LockPath())
	ok, err := probe.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock not released: ok=%v err=%v", ok, err)
	}
	_ = probe.Unlock()
}

func TestRunRejectsIncompleteComponents(t *testing.T) {
	f := newFixture(t)
	d, err := daemon.New(f.cfg, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = d.Run(context.Background(), func(context.Context) (daemon.Components, error) {
		return daemon.Components{Scanner: f.scanner, Indicator: f.indicator}, nil
	})
	if err == nil {
		t.Fatal("expected error for missing classifier")
	}
	if _, tornDown := f.indicator.snapshot(); !tornDown {
		t.Fatal("expected partial components to be released")
	}
}

func TestStatusWhenIdle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("expected idle daemon")
	}
	if status.Today != nil || status.HistoryPath != "" {
		t.Fatalf("idle daemon should not report history: %+v", status)
	}
	if d.APIAddr() != "" {
		t.Fatalf("APIAddr = %q, want empty", d.APIAddr())
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := daemon.New(nil, logging.NewNop(), ""); err == nil {
		t.Fatal("expected error for nil config")
	}
}
