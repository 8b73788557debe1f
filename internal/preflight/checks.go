package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// CheckSerialDevice verifies that path is a character device the process can
// read and write. Symlinks such as /dev/serial/by-id entries are followed.
func CheckSerialDevice(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	return checkCharDevice(name, path)
}

// CheckGPIOChip verifies the indicator chip for the configured driver. With
// the auto driver a missing chip is reported but is not fatal.
func CheckGPIOChip(name, chip, driver string) Result {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mock":
		return Result{Name: name, Passed: true, Detail: "mock driver (no hardware)"}
	case "gpio":
		return checkCharDevice(name, chipPath(chip))
	default:
		result := checkCharDevice(name, chipPath(chip))
		if !result.Passed {
			result.Optional = true
			result.Detail += "; auto driver will fall back to mock"
		}
		return result
	}
}

// CheckWritableDir verifies that dir exists and is writable. A missing
// directory passes when its nearest existing parent is writable, since the
// daemon creates it on first use.
func CheckWritableDir(name, dir string) Result {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", dir)}
		}
		if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", dir, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", dir)}
	case errors.Is(err, os.ErrNotExist):
		parent := nearestExisting(dir)
		if parent == "" {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", dir)}
		}
		if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", dir, parent, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", dir)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", dir, err)}
	}
}

func checkCharDevice(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// chipPath maps a chip name such as "gpiochip0" to its device node.
func chipPath(chip string) string {
	chip = strings.TrimSpace(chip)
	if chip == "" || filepath.IsAbs(chip) {
		return chip
	}
	return filepath.Join("/dev", chip)
}

func nearestExisting(dir string) string {
	for current := filepath.Clean(dir); ; {
		if info, err := os.Stat(current); err == nil && info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}
