package indicator

import (
	"fmt"
	"log/slog"
	"sync"

	"qrassure/internal/logging"
)

// MockDriver logs every call instead of touching hardware. It also keeps the
// current line states so tests can inspect them.
type MockDriver struct {
	offsets map[Line]int
	logger  *slog.Logger

	mu    sync.Mutex
	state map[Line]bool
	ready bool
}

// NewMockDriver returns a mock with the given line offsets for log output.
func NewMockDriver(offsets map[Line]int, logger *slog.Logger) *MockDriver {
	return &MockDriver{
		offsets: offsets,
		logger:  logging.NewComponentLogger(logger, "indicator-mock"),
		state:   make(map[Line]bool, len(Lines)),
	}
}

// Setup marks every line as an output driven low.
func (m *MockDriver) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range Lines {
		m.state[line] = false
		m.logger.Info("gpio setup",
			logging.String("line", line.String()),
			logging.Int("pin", m.offsets[line]),
		)
	}
	m.ready = true
	return nil
}

// Set records the new line state.
func (m *MockDriver) Set(line Line, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return fmt.Errorf("%w: %s (driver not set up)", ErrUnknownLine, line)
	}
	m.state[line] = on
	m.logger.Info("gpio output",
		logging.String("line", line.String()),
		logging.Int("pin", m.offsets[line]),
		logging.Bool("on", on),
	)
	return nil
}

// Teardown drives every line low.
func (m *MockDriver) Teardown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range Lines {
		m.state[line] = false
	}
	m.ready = false
	m.logger.Info("gpio cleanup")
	return nil
}

// State reports whether line is currently on.
func (m *MockDriver) State(line Line) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[line]
}

// Ready reports whether Setup has run without a later Teardown.
func (m *MockDriver) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}
