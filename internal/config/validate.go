package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTerminal(); err != nil {
		return err
	}
	if err := c.validateSerial(); err != nil {
		return err
	}
	if err := c.validateIndicator(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.layout.Validate(); err != nil {
		return fmt.Errorf("codes: %w", err)
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTerminal() error {
	if c.Terminal.ID == "" {
		return errors.New("terminal.id must be set (or export QRASSURE_TERMINAL_ID)")
	}
	return nil
}

func (c *Config) validateSerial() error {
	if c.Serial.Port == "" {
		return errors.New("serial.port must be set")
	}
	if c.Serial.BaudRate <= 0 {
		return errors.New("serial.baud_rate must be positive")
	}
	switch c.Serial.ByteSize {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("serial.byte_size must be 5, 6, 7, or 8 (got %d)", c.Serial.ByteSize)
	}
	switch c.Serial.Parity {
	case "N", "E", "O", "M", "S":
	default:
		return fmt.Errorf("serial.parity must be one of N, E, O, M, S (got %q)", c.Serial.Parity)
	}
	switch c.Serial.StopBits {
	case "1", "1.5", "2":
	default:
		return fmt.Errorf("serial.stop_bits must be 1, 1.5, or 2 (got %q)", c.Serial.StopBits)
	}
	switch c.Serial.Encoding {
	case "shift_jis", "utf-8", "euc-jp":
	default:
		return fmt.Errorf("serial.encoding must be shift_jis, utf-8, or euc-jp (got %q)", c.Serial.Encoding)
	}
	if c.Serial.ReadTimeoutMS <= 0 {
		return errors.New("serial.read_timeout_ms must be positive")
	}
	if c.Serial.WriteTimeoutMS < 0 || c.Serial.InterByteTimeoutMS < 0 {
		return errors.New("serial.write_timeout_ms and serial.inter_byte_timeout_ms must not be negative")
	}
	return nil
}

func (c *Config) validateIndicator() error {
	switch c.Indicator.Driver {
	case "gpio", "mock", "auto":
	default:
		return fmt.Errorf("indicator.driver must be gpio, mock, or auto (got %q)", c.Indicator.Driver)
	}
	lines := map[string]int{
		"indicator.green_line":  c.Indicator.GreenLine,
		"indicator.red_line":    c.Indicator.RedLine,
		"indicator.buzzer_line": c.Indicator.BuzzerLine,
	}
	seen := make(map[int]string, len(lines))
	for _, key := range sortedKeys(lines) {
		line := lines[key]
		if line < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
		if other, ok := seen[line]; ok {
			return fmt.Errorf("%s and %s share line %d", other, key, line)
		}
		seen[line] = key
	}
	return nil
}

func (c *Config) validateTimings() error {
	if c.Pairing.TimeoutSeconds <= 0 {
		return errors.New("pairing.timeout_seconds must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"indicator.blink_interval_ms":      c.Indicator.BlinkIntervalMS,
		"indicator.success_duration_ms":    c.Indicator.SuccessDurationMS,
		"indicator.error_beep_duration_ms": c.Indicator.ErrorBeepDurationMS,
		"indicator.error_beep_interval_ms": c.Indicator.ErrorBeepIntervalMS,
	})
}

func (c *Config) validateJournal() error {
	if c.Journal.KeepFiles <= 0 {
		return errors.New("journal.keep_files must be positive")
	}
	if c.Journal.MatchLabel == c.Journal.MismatchLabel {
		return errors.New("journal.match_label and journal.mismatch_label must differ")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func sortedKeys(values map[string]int) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
