// Package daemonctl starts and stops a background qrassure daemon using the
// instance lock and pid file the daemon maintains.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"qrassure/internal/config"
)

// PIDFileName is the daemon pid file inside the state directory.
const PIDFileName = "qrassured.pid"

// ErrDaemonNotRunning reports that no daemon holds the instance lock.
var ErrDaemonNotRunning = errors.New("daemon is not running")

const pollInterval = 100 * time.Millisecond

// StopResult describes how a stop request concluded.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// PIDPath returns the pid file location for cfg.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, PIDFileName)
}

// Running reports whether a daemon currently holds the instance lock.
func Running(lockPath string) (bool, error) {
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

// Launch starts a detached "run" process of executablePath.
func Launch(executablePath, configPath string) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"run"}
	if cfg := strings.TrimSpace(configPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// Start launches the daemon unless one is already running and waits for it
// to take the instance lock. It reports whether a new process was launched.
func Start(cfg *config.Config, executablePath, configPath string, timeout time.Duration) (bool, error) {
	running, err := Running(cfg.LockPath())
	if err != nil {
		return false, err
	}
	if running {
		return false, nil
	}
	if err := Launch(executablePath, configPath); err != nil {
		return false, err
	}
	if err := waitFor(timeout, func() (bool, error) { return Running(cfg.LockPath()) }); err != nil {
		return true, fmt.Errorf("daemon failed to start: %w (see 'qrassure doctor' and the daemon log)", err)
	}
	return true, nil
}

// Stop sends SIGTERM to the running daemon and waits for it to release the
// instance lock. After gracePeriod the process is killed.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	lockPath := cfg.LockPath()
	running, err := Running(lockPath)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}

	pidPath := PIDPath(cfg)
	pid, err := readPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	stopped := func() (bool, error) {
		held, err := Running(lockPath)
		return !held, err
	}
	if err := waitFor(gracePeriod, stopped); err == nil {
		return result, nil
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	result.ForcedKill = true
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return result, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid daemon pid file %q", path)
	}
	return pid, nil
}

func waitFor(timeout time.Duration, done func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("timed out")
		}
		time.Sleep(pollInterval)
	}
}
