package scanner

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"

	"qrassure/internal/config"
)

// Settings describes the scanner port. Values are fixed for the life of a Reader.
type Settings struct {
	Port             string
	BaudRate         int
	DataBits         int
	Parity           string
	StopBits         string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	InterByteTimeout time.Duration
	Encoding         string
}

// SettingsFromConfig extracts the serial settings from a validated config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Port:             cfg.Serial.Port,
		BaudRate:         cfg.Serial.BaudRate,
		DataBits:         cfg.Serial.ByteSize,
		Parity:           cfg.Serial.Parity,
		StopBits:         cfg.Serial.StopBits,
		ReadTimeout:      cfg.ReadTimeout(),
		WriteTimeout:     cfg.WriteTimeout(),
		InterByteTimeout: cfg.InterByteTimeout(),
		Encoding:         cfg.Serial.Encoding,
	}
}

// Mode converts the settings into the serial library's port mode.
func (s Settings) Mode() (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: s.BaudRate, DataBits: s.DataBits}

	switch strings.ToUpper(s.Parity) {
	case "", "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	case "M":
		mode.Parity = serial.MarkParity
	case "S":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", s.Parity)
	}

	switch s.StopBits {
	case "", "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %q", s.StopBits)
	}
	return mode, nil
}

// decoderFor returns the text encoding for name; nil means UTF-8 passthrough.
func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8":
		return nil, nil
	case "shift_jis":
		return japanese.ShiftJIS, nil
	case "euc-jp":
		return japanese.EUCJP, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
