package indicator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"qrassure/internal/config"
	"qrassure/internal/logging"
)

// Line identifies one indicator output.
type Line int

const (
	LineGreen Line = iota
	LineRed
	LineBuzzer
)

// Lines lists every output in setup order.
var Lines = []Line{LineGreen, LineRed, LineBuzzer}

func (l Line) String() string {
	switch l {
	case LineGreen:
		return "green"
	case LineRed:
		return "red"
	case LineBuzzer:
		return "buzzer"
	default:
		return fmt.Sprintf("line(%d)", int(l))
	}
}

// Driver switches indicator lines.
type Driver interface {
	Setup() error
	Set(line Line, on bool) error
	Teardown() error
}

// Driver kinds accepted by the indicator.driver setting.
const (
	DriverGPIO = "gpio"
	DriverMock = "mock"
	DriverAuto = "auto"
)

// ErrUnknownLine reports a Set call for a line the driver was not set up with.
var ErrUnknownLine = errors.New("unknown indicator line")

// Open builds the configured driver and runs its Setup. With driver "auto" a
// GPIO setup failure falls back to the mock driver.
func Open(cfg *config.Config, logger *slog.Logger) (Driver, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Indicator.Driver))
	offsets := map[Line]int{
		LineGreen:  cfg.Indicator.GreenLine,
		LineRed:    cfg.Indicator.RedLine,
		LineBuzzer: cfg.Indicator.BuzzerLine,
	}

	switch kind {
	case DriverMock:
		return setup(NewMockDriver(offsets, logger))
	case DriverGPIO:
		return setup(NewGPIODriver(cfg.Indicator.Chip, offsets, logger))
	case DriverAuto, "":
		driver, err := setup(NewGPIODriver(cfg.Indicator.Chip, offsets, logger))
		if err == nil {
			return driver, nil
		}
		logging.WarnWithContext(logging.NewComponentLogger(logger, "indicator"),
			"gpio unavailable; using mock indicator", "indicator_mock_fallback",
			logging.Error(err),
			logging.String("chip", cfg.Indicator.Chip),
			logging.String(logging.FieldErrorHint, "set indicator.driver = \"gpio\" to make this fatal, or grant access to the gpio chip"),
			logging.String(logging.FieldImpact, "LEDs and buzzer are simulated in the log"),
		)
		return setup(NewMockDriver(offsets, logger))
	default:
		return nil, fmt.Errorf("unknown indicator driver %q", cfg.Indicator.Driver)
	}
}

func setup(driver Driver) (Driver, error) {
	if err := driver.Setup(); err != nil {
		return nil, err
	}
	return driver, nil
}
