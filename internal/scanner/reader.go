package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.bug.st/serial"
	"golang.org/x/text/encoding"

	"qrassure/internal/logging"
)

var (
	// ErrPortUnavailable reports that the serial port could not be opened.
	ErrPortUnavailable = errors.New("serial port unavailable")
	// ErrNoData reports a read that timed out without a complete or partial line.
	ErrNoData = errors.New("no scan data")
)

const (
	readChunk            = 256
	defaultReopenBackoff = time.Second
)

// Port is the subset of a serial port the reader uses.
type Port interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Opener opens the port described by settings.
type Opener func(Settings) (Port, error)

// SerialOpener opens a real serial device.
func SerialOpener(settings Settings) (Port, error) {
	mode, err := settings.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(settings.Port, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Reader assembles scanner lines from a serial port.
type Reader struct {
	settings Settings
	opener   Opener
	decoder  encoding.Encoding
	logger   *slog.Logger

	reopenBackoff time.Duration
	stale         atomic.Bool

	mu      sync.Mutex
	port    Port
	pending []byte
	buf     []byte
}

// Open opens the configured serial device. Failure wraps ErrPortUnavailable.
func Open(settings Settings, logger *slog.Logger) (*Reader, error) {
	return NewReader(settings, SerialOpener, logger)
}

// NewReader builds a reader over ports produced by opener and opens the
// first port immediately.
func NewReader(settings Settings, opener Opener, logger *slog.Logger) (*Reader, error) {
	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}
	if opener == nil {
		opener = SerialOpener
	}
	r := &Reader{
		settings:      settings,
		opener:        opener,
		decoder:       decoder,
		logger:        logging.NewComponentLogger(logger, "scanner"),
		reopenBackoff: defaultReopenBackoff,
		buf:           make([]byte, readChunk),
	}
	if err := r.openLocked(); err != nil {
		return nil, err
	}
	r.logger.Info("serial port opened",
		logging.String(logging.FieldDevice, settings.Port),
		logging.Int("baud_rate", settings.BaudRate),
		logging.String("encoding", settings.Encoding),
		logging.Duration("read_timeout", settings.ReadTimeout),
		logging.Duration("write_timeout", settings.WriteTimeout),
	)
	return r, nil
}

// Settings returns the reader's port settings.
func (r *Reader) Settings() Settings {
	return r.settings
}

// MarkStale asks the reader to reopen the port before the next read. It is
// safe to call from any goroutine.
func (r *Reader) MarkStale() {
	r.stale.Store(true)
}

// Close releases the port.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

// ReadLine returns the next scan with surrounding whitespace removed. A read
// that times out returns any partial line collected so far, or ErrNoData when
// nothing arrived. After an I/O error the port is reopened on the next call.
func (r *Reader) ReadLine(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.stale.Swap(false) && r.port != nil {
		_ = r.closeLocked()
	}
	if r.port == nil {
		if err := r.openLocked(); err != nil {
			r.logger.Debug("serial reopen failed", logging.Error(err))
			if waitErr := sleep(ctx, r.reopenBackoff); waitErr != nil {
				return "", waitErr
			}
			return "", err
		}
		r.logger.Info("serial port reopened",
			logging.String(logging.FieldDevice, r.settings.Port),
			logging.String(logging.FieldEventType, "serial_reopened"),
		)
	}

	if line, ok := r.takeLine(); ok {
		return r.finish(line)
	}

	timeout := r.settings.ReadTimeout
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := r.port.SetReadTimeout(timeout); err != nil {
			return "", r.failLocked(fmt.Errorf("set read timeout: %w", err))
		}
		n, err := r.port.Read(r.buf)
		if err != nil {
			return "", r.failLocked(fmt.Errorf("read %s: %w", r.settings.Port, err))
		}
		if n == 0 {
			if len(r.pending) == 0 {
				return "", ErrNoData
			}
			line := r.pending
			r.pending = nil
			return r.finish(line)
		}
		r.pending = append(r.pending, r.buf[:n]...)
		if line, ok := r.takeLine(); ok {
			return r.finish(line)
		}
		if r.settings.InterByteTimeout > 0 {
			timeout = r.settings.InterByteTimeout
		}
	}
}

// takeLine removes the first newline-terminated line from the pending buffer.
func (r *Reader) takeLine() ([]byte, bool) {
	idx := bytes.IndexByte(r.pending, '\n')
	if idx < 0 {
		return nil, false
	}
	line := append([]byte(nil), r.pending[:idx]...)
	r.pending = r.pending[idx+1:]
	if len(r.pending) == 0 {
		r.pending = nil
	}
	return line, true
}

func (r *Reader) finish(line []byte) (string, error) {
	text, err := r.decode(line)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoData
	}
	return text, nil
}

func (r *Reader) decode(line []byte) (string, error) {
	if r.decoder == nil {
		if !utf8.Valid(line) {
			return strings.ToValidUTF8(string(line), "\uFFFD"), nil
		}
		return string(line), nil
	}
	decoded, err := r.decoder.NewDecoder().Bytes(line)
	if err != nil {
		return "", fmt.Errorf("decode %s scan: %w", r.settings.Encoding, err)
	}
	return string(decoded), nil
}

func (r *Reader) openLocked() error {
	port, err := r.opener(r.settings)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPortUnavailable, r.settings.Port, err)
	}
	r.port = port
	r.pending = nil
	return nil
}

// failLocked drops the port after an I/O error so the next call reopens it.
func (r *Reader) failLocked(err error) error {
	_ = r.closeLocked()
	return err
}

func (r *Reader) closeLocked() error {
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	r.pending = nil
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
