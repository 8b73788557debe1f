package indicator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"qrassure/internal/config"
	"qrassure/internal/logging"
)

// errorBeeps is the number of buzzer pulses in the error pattern.
const errorBeeps = 3

// Timings controls the signal patterns.
type Timings struct {
	BlinkInterval     time.Duration
	SuccessDuration   time.Duration
	ErrorBeepDuration time.Duration
	ErrorBeepInterval time.Duration
}

// TimingsFromConfig extracts the pattern timings from a validated config.
func TimingsFromConfig(cfg *config.Config) Timings {
	return Timings{
		BlinkInterval:     cfg.BlinkInterval(),
		SuccessDuration:   cfg.SuccessDuration(),
		ErrorBeepDuration: cfg.ErrorBeepDuration(),
		ErrorBeepInterval: cfg.ErrorBeepInterval(),
	}
}

// Panel plays signal patterns on a driver. Patterns sleep with the context,
// so a cancelled pattern stops early but still switches its lines off.
type Panel struct {
	driver  Driver
	timings Timings
	logger  *slog.Logger
}

// NewPanel returns a panel over an already set-up driver.
func NewPanel(driver Driver, timings Timings, logger *slog.Logger) *Panel {
	return &Panel{
		driver:  driver,
		timings: timings,
		logger:  logging.NewComponentLogger(logger, "indicator"),
	}
}

// SignalSuccess lights green and sounds the buzzer for the success duration.
func (p *Panel) SignalSuccess(ctx context.Context) error {
	var errs []error
	set := p.collect(&errs)

	// The waiting pulse leaves red lit.
	set(LineRed, false)
	set(LineGreen, true)
	set(LineBuzzer, true)
	waitErr := sleep(ctx, p.timings.SuccessDuration)
	set(LineGreen, false)
	set(LineBuzzer, false)

	return joinWait(waitErr, errs)
}

// SignalError lights red and beeps three times.
func (p *Panel) SignalError(ctx context.Context) error {
	var errs []error
	set := p.collect(&errs)

	set(LineGreen, false)
	set(LineRed, true)
	var waitErr error
	for i := 0; i < errorBeeps && waitErr == nil; i++ {
		set(LineBuzzer, true)
		waitErr = sleep(ctx, p.timings.ErrorBeepDuration)
		set(LineBuzzer, false)
		if waitErr == nil {
			waitErr = sleep(ctx, p.timings.ErrorBeepInterval)
		}
	}
	set(LineRed, false)

	return joinWait(waitErr, errs)
}

// SignalWaiting plays one waiting pulse: green then red, one blink interval each.
func (p *Panel) SignalWaiting(ctx context.Context) error {
	var errs []error
	set := p.collect(&errs)

	set(LineGreen, true)
	set(LineRed, false)
	waitErr := sleep(ctx, p.timings.BlinkInterval)
	set(LineGreen, false)
	set(LineRed, true)
	if waitErr == nil {
		waitErr = sleep(ctx, p.timings.BlinkInterval)
	}

	return joinWait(waitErr, errs)
}

// Teardown switches every line off and releases the driver.
func (p *Panel) Teardown() error {
	var errs []error
	for _, line := range Lines {
		if err := p.driver.Set(line, false); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.driver.Teardown(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	p.logger.Info("indicator released", logging.String(logging.FieldEventType, "indicator_teardown"))
	return nil
}

func (p *Panel) collect(errs *[]error) func(Line, bool) {
	return func(line Line, on bool) {
		if err := p.driver.Set(line, on); err != nil {
			*errs = append(*errs, err)
		}
	}
}

// joinWait puts the context error first so callers can test it with errors.Is.
func joinWait(waitErr error, errs []error) error {
	if waitErr != nil {
		errs = append([]error{waitErr}, errs...)
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
