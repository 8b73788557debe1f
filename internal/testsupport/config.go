package testsupport

import (
	"path/filepath"
	"testing"

	"qrassure/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a normalized config seeded with unique temp directories
// per test, the mock indicator driver and millisecond signal timings.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Terminal.ID = "T99"
	cfgVal.Serial.Port = filepath.Join(base, "dev", "ttyFAKE0")
	cfgVal.Indicator.Driver = "mock"
	cfgVal.Indicator.BlinkIntervalMS = 1
	cfgVal.Indicator.SuccessDurationMS = 1
	cfgVal.Indicator.ErrorBeepDurationMS = 1
	cfgVal.Indicator.ErrorBeepIntervalMS = 1
	cfgVal.Journal.Dir = filepath.Join(base, "journal")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Normalize(); err != nil {
		t.Fatalf("normalize test config: %v", err)
	}
	return builder.cfg
}

// WithTerminalID sets the terminal identifier written to outcome records.
func WithTerminalID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Terminal.ID = id
	}
}

// WithPairingTimeout sets the pairing timeout in seconds.
func WithPairingTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pairing.TimeoutSeconds = seconds
	}
}

// WithSerialPort overrides the scanner device path.
func WithSerialPort(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Serial.Port = path
	}
}

// WithAPIToken requires bearer authentication on the status API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
