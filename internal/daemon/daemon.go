package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"qrassure/internal/config"
	"qrassure/internal/history"
	"qrassure/internal/logging"
	"qrassure/internal/outcome"
	"qrassure/internal/pairing"
	"qrassure/internal/preflight"
	"qrassure/internal/qrcode"
	"qrassure/internal/scanner"
)

// ErrAlreadyRunning reports that another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another qrassure daemon instance is already running")

// Scanner is the serial reader as the daemon sees it.
type Scanner interface {
	pairing.Scanner
	MarkStale()
	Close() error
}

// Indicator is the signal panel as the daemon sees it.
type Indicator interface {
	pairing.Indicator
	Teardown() error
}

// Components are the collaborators a run owns. History and Hotplug are optional.
type Components struct {
	Classifier *qrcode.Classifier
	Scanner    Scanner
	Indicator  Indicator
	Recorder   outcome.Recorder
	History    *history.Store
	Hotplug    *scanner.HotplugWatcher
}

// Builder opens the components for one run. It is called after the instance
// lock is held.
type Builder func(ctx context.Context) (Components, error)

// Daemon enforces single-instance execution and runs the pairing loop.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool

	mu        sync.Mutex
	comps     Components
	machine   *pairing.Machine
	api       *apiServer
	startedAt time.Time
	checks    []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	PID         int
	StartedAt   time.Time
	LockPath    string
	HistoryPath string
	JournalDir  string
	LogPath     string
	Pairing     pairing.Snapshot
	Today       *history.Summary
	Checks      []preflight.Result
}

// New constructs a daemon for cfg. logPath is reported in status output.
func New(cfg *config.Config, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run acquires the instance lock, builds the components and runs the pairing
// loop until ctx is cancelled. Cancellation is a clean stop and returns nil.
func (d *Daemon) Run(ctx context.Context, build Builder) error {
	if build == nil {
		return errors.New("daemon requires a component builder")
	}
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer d.unlock()

	comps, err := build(ctx)
	if err != nil {
		return err
	}
	if comps.Classifier == nil || comps.Scanner == nil || comps.Indicator == nil {
		d.closeComponents(comps)
		return errors.New("component builder returned incomplete components")
	}
	defer d.closeComponents(comps)

	checks := preflight.RunAll(d.cfg)
	d.logChecks(checks)

	machine := pairing.New(comps.Classifier, comps.Scanner, comps.Indicator, comps.Recorder,
		pairing.OptionsFromConfig(d.cfg), d.logger)

	d.mu.Lock()
	d.comps = comps
	d.machine = machine
	d.checks = checks
	d.startedAt = time.Now()
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.comps = Components{}
		d.mu.Unlock()
	}()

	if err := comps.Hotplug.Start(ctx); err != nil {
		return fmt.Errorf("start hotplug watcher: %w", err)
	}
	defer comps.Hotplug.Stop()

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		return err
	}
	if err := srv.start(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	d.api = srv
	d.mu.Unlock()
	defer func() {
		srv.stop()
		d.mu.Lock()
		d.api = nil
		d.mu.Unlock()
	}()

	d.logger.Info("qrassure daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("terminal_id", d.cfg.Terminal.ID),
		logging.String(logging.FieldDevice, d.cfg.Serial.Port),
	)
	runErr := machine.Run(ctx)
	d.logger.Info("qrassure daemon stopping", logging.String(logging.FieldEventType, "daemon_stopping"))
	return runErr
}

// Running reports whether Run is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// APIAddr returns the address the status API is listening on, or "" when
// the API is disabled or the daemon is not running.
func (d *Daemon) APIAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	machine := d.machine
	store := d.comps.History
	startedAt := d.startedAt
	checks := append([]preflight.Result(nil), d.checks...)
	d.mu.Unlock()

	status := Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		StartedAt:  startedAt,
		LockPath:   d.lockPath,
		JournalDir: d.cfg.Journal.Dir,
		LogPath:    d.logPath,
		Checks:     checks,
	}
	if machine != nil {
		status.Pairing = machine.Snapshot()
	}
	if store != nil {
		status.HistoryPath = store.Path()
		summary, err := store.Summary(ctx, startOfDay(time.Now()))
		if err != nil {
			d.logger.Debug("status summary unavailable", logging.Error(err))
		} else {
			status.Today = &summary
		}
	}
	return status
}

func (d *Daemon) history() *history.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.comps.History
}

// closeComponents releases everything a run owns. The indicator is torn down
// first so the lines go dark even if a later close blocks.
func (d *Daemon) closeComponents(comps Components) {
	if comps.Indicator != nil {
		if err := comps.Indicator.Teardown(); err != nil {
			logging.WarnWithContext(d.logger, "indicator teardown failed", "indicator_teardown_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the gpio chip; lines may stay lit until the next start"),
				logging.String(logging.FieldImpact, "indicator outputs may remain on"),
			)
		}
	}
	if comps.Scanner != nil {
		if err := comps.Scanner.Close(); err != nil {
			d.logger.Debug("serial close failed", logging.Error(err))
		}
	}
	if comps.History != nil {
		if err := comps.History.Close(); err != nil {
			d.logger.Debug("history close failed", logging.Error(err))
		}
	}
}

func (d *Daemon) unlock() {
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
}

func (d *Daemon) logChecks(checks []preflight.Result) {
	for _, check := range checks {
		if check.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.Bool("optional", check.Optional),
			logging.String(logging.FieldErrorHint, "run 'qrassure doctor' for details"),
			logging.String(logging.FieldImpact, "the affected feature may not work"),
		)
	}
}

func startOfDay(ts time.Time) time.Time {
	year, month, day := ts.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, ts.Location())
}
