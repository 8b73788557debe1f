// Package daemonrun hosts the qrassured process lifecycle: signal handling,
// per-run log files, the pid file and component construction.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"qrassure/internal/config"
	"qrassure/internal/daemon"
	"qrassure/internal/daemonctl"
	"qrassure/internal/history"
	"qrassure/internal/indicator"
	"qrassure/internal/logging"
	"qrassure/internal/outcome"
	"qrassure/internal/preflight"
	"qrassure/internal/qrcode"
	"qrassure/internal/scanner"
)

const (
	logPrefix      = "qrassure"
	logPointerName = "qrassure.log"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the qrassure daemon and blocks until SIGINT, SIGTERM or cmdCtx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("%s-%s.log", logPrefix, runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		SessionID:        uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logPointerName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logPrefix + "-*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := daemonctl.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, logger, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	builder := &componentBuilder{cfg: cfg, logger: logger, openReader: scanner.Open}
	if err := d.Run(signalCtx, builder.build); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'qrassure doctor' to check the scanner port and directories"),
			logging.String(logging.FieldImpact, "scans are not being paired"),
		)
		return err
	}
	logger.Info("qrassure daemon shut down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

type componentBuilder struct {
	cfg        *config.Config
	logger     *slog.Logger
	openReader func(scanner.Settings, *slog.Logger) (*scanner.Reader, error)
}

// build opens the scanner, indicator and recorders. The scanner and indicator
// are required; the history index is optional and only logs when unavailable.
func (b *componentBuilder) build(ctx context.Context) (comps daemon.Components, err error) {
	classifier, err := qrcode.NewClassifier(b.cfg.CodeLayout())
	if err != nil {
		return daemon.Components{}, fmt.Errorf("code layout: %w", err)
	}

	reader, err := b.openReader(scanner.SettingsFromConfig(b.cfg), b.logger)
	if err != nil {
		return daemon.Components{}, fmt.Errorf("open scanner: %w", err)
	}
	defer func() {
		if err != nil {
			_ = reader.Close()
		}
	}()

	driver, err := indicator.Open(b.cfg, b.logger)
	if err != nil {
		return daemon.Components{}, fmt.Errorf("open indicator: %w", err)
	}
	panel := indicator.NewPanel(driver, indicator.TimingsFromConfig(b.cfg), b.logger)

	journal := outcome.NewJournal(b.cfg.Journal.Dir, b.cfg.Journal.KeepFiles, outcome.Labels{
		Match:    b.cfg.Journal.MatchLabel,
		Mismatch: b.cfg.Journal.MismatchLabel,
	}, b.logger)
	recorders := outcome.Fanout{journal}

	store, storeErr := history.Open(ctx, b.cfg.HistoryPath(), b.logger)
	if storeErr != nil {
		logging.WarnWithContext(b.logger, "outcome history unavailable", "history_unavailable",
			logging.Error(storeErr),
			logging.String("path", b.cfg.HistoryPath()),
			logging.String(logging.FieldErrorHint, "check the state directory permissions or delete a stale history database"),
			logging.String(logging.FieldImpact, "status API and history command show no outcomes; the CSV journal is unaffected"),
		)
		store = nil
	} else {
		recorders = append(recorders, store)
	}

	hotplug := scanner.NewHotplugWatcher(b.cfg.Serial.Port, b.logger, func(string) {
		reader.MarkStale()
	})

	return daemon.Components{
		Classifier: classifier,
		Scanner:    reader,
		Indicator:  panel,
		Recorder:   recorders,
		History:    store,
		Hotplug:    hotplug,
	}, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPointerName)
	if err := os.Remove(current); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("terminal_id", cfg.Terminal.ID),
		logging.String("serial_port", cfg.Serial.Port),
		logging.Int("baud_rate", cfg.Serial.BaudRate),
		logging.String("indicator_driver", cfg.Indicator.Driver),
		logging.Duration("pairing_timeout", cfg.PairingTimeout()),
		logging.Bool("api_enabled", cfg.API.Bind != ""),
	}
	for _, check := range preflight.RunAll(cfg) {
		attrs = append(attrs, logging.Bool(checkKey(check.Name), check.Passed))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func checkKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_")) + "_ok"
}
