package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"qrassure/internal/qrcode"
)

//go:embed sample_config.toml
var sampleConfig string

// Terminal identifies the workstation in every journal row.
type Terminal struct {
	ID string `toml:"id"`
}

// Pairing contains the two-scan protocol timing.
type Pairing struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Serial contains scanner port parameters.
type Serial struct {
	Port               string `toml:"port"`
	BaudRate           int    `toml:"baud_rate"`
	ByteSize           int    `toml:"byte_size"`
	Parity             string `toml:"parity"`
	StopBits           string `toml:"stop_bits"`
	ReadTimeoutMS      int    `toml:"read_timeout_ms"`
	WriteTimeoutMS     int    `toml:"write_timeout_ms"`
	InterByteTimeoutMS int    `toml:"inter_byte_timeout_ms"`
	Encoding           string `toml:"encoding"`
}

// Indicator contains LED/buzzer wiring and feedback timings.
type Indicator struct {
	// Driver selects the output backend: "gpio", "mock", or "auto".
	Driver              string `toml:"driver"`
	Chip                string `toml:"chip"`
	GreenLine           int    `toml:"green_line"`
	RedLine             int    `toml:"red_line"`
	BuzzerLine          int    `toml:"buzzer_line"`
	BlinkIntervalMS     int    `toml:"blink_interval_ms"`
	SuccessDurationMS   int    `toml:"success_duration_ms"`
	ErrorBeepDurationMS int    `toml:"error_beep_duration_ms"`
	ErrorBeepIntervalMS int    `toml:"error_beep_interval_ms"`
}

// Codes contains the QR length and offset tables. Ranges use "start:end"
// notation with an exclusive end, counted in characters.
type Codes struct {
	ManualLength      int      `toml:"manual_length"`
	ManualDataLength  int      `toml:"manual_data_length"`
	ProcessLength     int      `toml:"process_length"`
	ProcessCandidates []string `toml:"process_candidates"`
	SiteCode          string   `toml:"site_code"`
	OrderNo           string   `toml:"order_no"`
	DispatchNo        string   `toml:"dispatch_no"`
}

// Journal contains the monthly CSV outcome log settings.
type Journal struct {
	Dir           string `toml:"dir"`
	KeepFiles     int    `toml:"keep_files"`
	MatchLabel    string `toml:"match_label"`
	MismatchLabel string `toml:"mismatch_label"`
}

// Paths contains runtime state and process log directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// API contains the read-only status endpoint settings. An empty bind disables it.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for process log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for QR-Assure.
//
// Configuration sections by subsystem:
//   - Terminal: workstation identifier written to the journal
//   - Pairing: second-scan timeout
//   - Serial: scanner port parameters and text encoding
//   - Indicator: GPIO chip, line offsets, feedback timings
//   - Codes: code lengths and field offsets
//   - Journal: monthly CSV directory, retention, result labels
//   - Paths: state (lock, history db) and process log directories
//   - API: status endpoint bind address
//   - Logging: log format, level, and retention
type Config struct {
	Terminal  Terminal  `toml:"terminal"`
	Pairing   Pairing   `toml:"pairing"`
	Serial    Serial    `toml:"serial"`
	Indicator Indicator `toml:"indicator"`
	Codes     Codes     `toml:"codes"`
	Journal   Journal   `toml:"journal"`
	Paths     Paths     `toml:"paths"`
	API       API       `toml:"api"`
	Logging   Logging   `toml:"logging"`

	layout qrcode.Layout
}

// ErrConfigNotFound reports that no configuration file exists where one was
// required.
var ErrConfigNotFound = errors.New("config file not found")

// requiredKeys lists the settings a config file must spell out. They describe
// the workstation and the code tables, so there is no safe default.
var requiredKeys = []string{
	"terminal.id",
	"pairing.timeout_seconds",
	"serial.port",
	"codes.manual_length",
	"codes.manual_data_length",
	"codes.process_length",
	"codes.process_candidates",
	"codes.site_code",
	"codes.order_no",
	"codes.dispatch_no",
}

func checkRequiredKeys(data []byte) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	var missing []string
	for _, key := range requiredKeys {
		if key == "terminal.id" && terminalIDFromEnv() != "" {
			continue
		}
		section, name, _ := strings.Cut(key, ".")
		table, ok := raw[section].(map[string]any)
		if !ok {
			missing = append(missing, key)
			continue
		}
		if _, ok := table[name]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/qrassure/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and the code layout parsed. A file that omits one of the required
// keys is rejected. When no file exists Load returns defaults with exists=false; callers
// that start the daemon must treat that as ErrConfigNotFound.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}

		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if err := checkRequiredKeys(data); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Normalize expands paths, parses the code layout, and validates the result.
// Load calls it for file-based configs; code that assembles a Config directly
// must call it before handing the config to other packages.
func (c *Config) Normalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("qrassure.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Journal.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CodeLayout returns the parsed and validated code layout.
func (c *Config) CodeLayout() qrcode.Layout {
	out := c.layout
	out.Candidates = append([]qrcode.Range(nil), c.layout.Candidates...)
	return out
}

// PairingTimeout returns how long a first scan waits for its partner.
func (c *Config) PairingTimeout() time.Duration {
	return time.Duration(c.Pairing.TimeoutSeconds) * time.Second
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "qrassured.lock")
}

// HistoryPath returns the outcome history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func milliseconds(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

// ReadTimeout returns the serial wait for the first byte of a line.
func (c *Config) ReadTimeout() time.Duration { return milliseconds(c.Serial.ReadTimeoutMS) }

// WriteTimeout returns the serial write timeout.
func (c *Config) WriteTimeout() time.Duration { return milliseconds(c.Serial.WriteTimeoutMS) }

// InterByteTimeout returns the serial gap allowed between bytes of one line.
func (c *Config) InterByteTimeout() time.Duration { return milliseconds(c.Serial.InterByteTimeoutMS) }

// BlinkInterval returns the half-period of the waiting blink.
func (c *Config) BlinkInterval() time.Duration { return milliseconds(c.Indicator.BlinkIntervalMS) }

// SuccessDuration returns how long the success signal stays on.
func (c *Config) SuccessDuration() time.Duration { return milliseconds(c.Indicator.SuccessDurationMS) }

// ErrorBeepDuration returns how long each error beep sounds.
func (c *Config) ErrorBeepDuration() time.Duration {
	return milliseconds(c.Indicator.ErrorBeepDurationMS)
}

// ErrorBeepInterval returns the silence after each error beep.
func (c *Config) ErrorBeepInterval() time.Duration {
	return milliseconds(c.Indicator.ErrorBeepIntervalMS)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
