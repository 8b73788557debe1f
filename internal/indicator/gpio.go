package indicator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"qrassure/internal/logging"
)

const gpioConsumer = "qrassure"

// GPIODriver drives indicator lines on a GPIO character device chip.
type GPIODriver struct {
	chip    string
	offsets map[Line]int
	logger  *slog.Logger

	mu    sync.Mutex
	lines map[Line]*gpiocdev.Line
}

// NewGPIODriver returns a driver for the given chip (e.g. "gpiochip0") and line offsets.
func NewGPIODriver(chip string, offsets map[Line]int, logger *slog.Logger) *GPIODriver {
	return &GPIODriver{
		chip:    chip,
		offsets: offsets,
		logger:  logging.NewComponentLogger(logger, "indicator"),
	}
}

// Setup requests every line as an output driven low.
func (d *GPIODriver) Setup() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lines != nil {
		return nil
	}
	lines := make(map[Line]*gpiocdev.Line, len(d.offsets))
	for _, line := range Lines {
		offset, ok := d.offsets[line]
		if !ok {
			continue
		}
		requested, err := gpiocdev.RequestLine(d.chip, offset,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer(gpioConsumer),
		)
		if err != nil {
			for _, l := range lines {
				_ = l.Close()
			}
			return fmt.Errorf("request %s line %s:%d: %w", line, d.chip, offset, err)
		}
		lines[line] = requested
	}
	d.lines = lines
	d.logger.Info("gpio indicator ready",
		logging.String("chip", d.chip),
		logging.Int("green", d.offsets[LineGreen]),
		logging.Int("red", d.offsets[LineRed]),
		logging.Int("buzzer", d.offsets[LineBuzzer]),
	)
	return nil
}

// Set drives line high when on is true.
func (d *GPIODriver) Set(line Line, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	requested, ok := d.lines[line]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	value := 0
	if on {
		value = 1
	}
	if err := requested.SetValue(value); err != nil {
		return fmt.Errorf("set %s: %w", line, err)
	}
	return nil
}

// Teardown drives every line low and releases it.
func (d *GPIODriver) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, line := range Lines {
		requested, ok := d.lines[line]
		if !ok {
			continue
		}
		if err := requested.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", line, err))
		}
		if err := requested.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", line, err))
		}
	}
	d.lines = nil
	return errors.Join(errs...)
}
