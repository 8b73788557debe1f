package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qrassure/internal/testsupport"
)

func TestCheckWritableDir_OK(t *testing.T) {
	result := CheckWritableDir("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckWritableDir_WillBeCreated(t *testing.T) {
	result := CheckWritableDir("test", filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable dir to pass, got: %+v", result)
	}
}

func TestCheckWritableDir_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckWritableDir("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSerialDevice(t *testing.T) {
	if result := CheckSerialDevice("scanner", ""); result.Passed {
		t.Fatal("expected failure for empty path")
	}
	if result := CheckSerialDevice("scanner", filepath.Join(t.TempDir(), "ttyACM9")); result.Passed {
		t.Fatal("expected failure for missing device")
	}
	regular := filepath.Join(t.TempDir(), "ttyFAKE")
	if err := os.WriteFile(regular, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckSerialDevice("scanner", regular)
	if result.Passed || !strings.Contains(result.Detail, "character device") {
		t.Fatalf("expected character device failure, got %+v", result)
	}
	if result := CheckSerialDevice("null", "/dev/null"); !result.Passed {
		t.Fatalf("expected /dev/null to pass as a character device, got %+v", result)
	}
}

func TestCheckGPIOChipByDriver(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gpiochip9")

	if result := CheckGPIOChip("gpio", missing, "mock"); !result.Passed {
		t.Fatalf("mock driver should pass, got %+v", result)
	}
	strict := CheckGPIOChip("gpio", missing, "gpio")
	if strict.Passed || strict.Optional {
		t.Fatalf("gpio driver with missing chip should fail hard, got %+v", strict)
	}
	auto := CheckGPIOChip("gpio", missing, "auto")
	if auto.Passed || !auto.Optional {
		t.Fatalf("auto driver with missing chip should fail softly, got %+v", auto)
	}
	if got := chipPath("gpiochip0"); got != "/dev/gpiochip0" {
		t.Fatalf("chipPath = %q", got)
	}
}

func TestRunAllAndFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Scanner port" {
		t.Fatalf("expected only the fake scanner port to fail, got %+v", failed)
	}
}
