package scanner

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"qrassure/internal/logging"
)

// HotplugWatcher listens for udev tty events for the scanner device. When the
// device is added back it calls onAdd, which normally marks the reader stale.
type HotplugWatcher struct {
	logger *slog.Logger
	device string
	onAdd  func(device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	aliases map[string]struct{}
}

// NewHotplugWatcher returns nil when device is empty.
func NewHotplugWatcher(device string, logger *slog.Logger, onAdd func(device string)) *HotplugWatcher {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &HotplugWatcher{
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		device:  device,
		onAdd:   onAdd,
		aliases: deviceAliases(device),
	}
}

// Start connects to the udev netlink socket. Connection failures are logged
// and leave the watcher stopped; scanning continues without hotplug support.
func (w *HotplugWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(w.logger, "failed to connect to netlink socket; scanner replug needs a restart", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to open netlink sockets"),
			logging.String(logging.FieldImpact, "serial port is reopened only after read errors"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.loop(ctx, conn, quit)

	w.logger.Info("hotplug watcher started",
		logging.String(logging.FieldEventType, "hotplug_started"),
		logging.String(logging.FieldDevice, w.device),
	)
	return nil
}

// Stop shuts the watcher down. It is safe to call on a nil or stopped watcher.
func (w *HotplugWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	w.logger.Info("hotplug watcher stopped",
		logging.String(logging.FieldEventType, "hotplug_stopped"),
	)
}

// Running reports whether the watcher is connected.
func (w *HotplugWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *HotplugWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "scanner replug detection may be delayed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=tty with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

func (w *HotplugWatcher) handleEvent(uevent netlink.UEvent) {
	if !w.matches(uevent) {
		w.logger.Debug("ignoring tty event for other device",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		w.logger.Info("scanner attached",
			logging.String(logging.FieldEventType, "scanner_attached"),
			logging.String(logging.FieldDevice, w.device),
		)
		if w.onAdd != nil {
			w.onAdd(w.device)
		}
	case netlink.REMOVE:
		logging.WarnWithContext(w.logger, "scanner detached", "scanner_detached",
			logging.String(logging.FieldDevice, w.device),
			logging.String(logging.FieldErrorHint, "reconnect the QR scanner"),
			logging.String(logging.FieldImpact, "scans are not read until the scanner returns"),
		)
	}
}

// matches reports whether the event refers to the configured device, either
// by DEVNAME or one of its DEVLINKS.
func (w *HotplugWatcher) matches(uevent netlink.UEvent) bool {
	names := []string{devName(uevent)}
	names = append(names, strings.Fields(uevent.Env["DEVLINKS"])...)
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := w.aliases[name]; ok {
			return true
		}
	}
	return false
}

// devName returns the absolute device node for a uevent.
func devName(uevent netlink.UEvent) string {
	name := uevent.Env["DEVNAME"]
	if name == "" {
		devpath := uevent.Env["DEVPATH"]
		if devpath == "" {
			return ""
		}
		name = filepath.Base(devpath)
	}
	if !strings.HasPrefix(name, "/") {
		name = "/dev/" + name
	}
	return name
}

// deviceAliases returns the configured path and, when it is a symlink such as
// /dev/serial/by-id/..., the node it resolves to at startup.
func deviceAliases(device string) map[string]struct{} {
	aliases := map[string]struct{}{device: {}}
	if resolved, err := filepath.EvalSymlinks(device); err == nil {
		aliases[resolved] = struct{}{}
	}
	return aliases
}
