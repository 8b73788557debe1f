package config

import (
	"fmt"
	"os"
	"strings"

	"qrassure/internal/qrcode"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTerminal()
	c.normalizeSerial()
	c.normalizeIndicator()
	if err := c.normalizeCodes(); err != nil {
		return err
	}
	c.normalizeJournal()
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Journal.Dir) == "" {
		c.Journal.Dir = defaultJournalDir
	}
	if c.Journal.Dir, err = expandPath(c.Journal.Dir); err != nil {
		return fmt.Errorf("journal.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTerminal() {
	if value := terminalIDFromEnv(); value != "" {
		c.Terminal.ID = value
	}
	c.Terminal.ID = strings.TrimSpace(c.Terminal.ID)
}

func terminalIDFromEnv() string {
	return strings.TrimSpace(os.Getenv("QRASSURE_TERMINAL_ID"))
}

func (c *Config) normalizeSerial() {
	c.Serial.Port = strings.TrimSpace(c.Serial.Port)
	c.Serial.Parity = strings.ToUpper(strings.TrimSpace(c.Serial.Parity))
	if c.Serial.Parity == "" {
		c.Serial.Parity = defaultParity
	}
	c.Serial.StopBits = strings.TrimSpace(c.Serial.StopBits)
	if c.Serial.StopBits == "" {
		c.Serial.StopBits = defaultStopBits
	}
	c.Serial.Encoding = strings.ToLower(strings.TrimSpace(c.Serial.Encoding))
	switch c.Serial.Encoding {
	case "":
		c.Serial.Encoding = defaultSerialEncoding
	case "shift-jis", "sjis", "cp932":
		c.Serial.Encoding = "shift_jis"
	case "utf8":
		c.Serial.Encoding = "utf-8"
	case "euc_jp", "eucjp":
		c.Serial.Encoding = "euc-jp"
	}
}

func (c *Config) normalizeIndicator() {
	c.Indicator.Driver = strings.ToLower(strings.TrimSpace(c.Indicator.Driver))
	if c.Indicator.Driver == "" {
		c.Indicator.Driver = defaultIndicatorDriver
	}
	c.Indicator.Chip = strings.TrimSpace(c.Indicator.Chip)
	if c.Indicator.Chip == "" {
		c.Indicator.Chip = defaultGPIOChip
	}
}

func (c *Config) normalizeCodes() error {
	layout := qrcode.Layout{
		ManualLength:     c.Codes.ManualLength,
		ManualDataLength: c.Codes.ManualDataLength,
		ProcessLength:    c.Codes.ProcessLength,
	}
	for i, value := range c.Codes.ProcessCandidates {
		r, err := qrcode.ParseRange(value)
		if err != nil {
			return fmt.Errorf("codes.process_candidates[%d]: %w", i, err)
		}
		layout.Candidates = append(layout.Candidates, r)
	}
	fields := []struct {
		key    string
		value  string
		target *qrcode.Range
	}{
		{"codes.site_code", c.Codes.SiteCode, &layout.SiteCode},
		{"codes.order_no", c.Codes.OrderNo, &layout.OrderNo},
		{"codes.dispatch_no", c.Codes.DispatchNo, &layout.DispatchNo},
	}
	for _, field := range fields {
		r, err := qrcode.ParseRange(field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.target = r
	}
	c.layout = layout
	return nil
}

func (c *Config) normalizeJournal() {
	c.Journal.MatchLabel = strings.TrimSpace(c.Journal.MatchLabel)
	if c.Journal.MatchLabel == "" {
		c.Journal.MatchLabel = defaultMatchLabel
	}
	c.Journal.MismatchLabel = strings.TrimSpace(c.Journal.MismatchLabel)
	if c.Journal.MismatchLabel == "" {
		c.Journal.MismatchLabel = defaultMismatchLabel
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
