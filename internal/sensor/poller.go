// Package sensor polls the environmental probe board over a serial line and
// caches the latest reading of every channel, so the control tick can read
// them without touching the hardware.
//
// The board speaks a line protocol: the host writes "<channel>:R\r" and the
// board answers with the reading as a decimal number terminated by '\r'.
// Lines starting with '*' are status responses and are skipped.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/roman-kulish/auv-navigation/internal/sampling"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	// DefaultInterval is the pause between two polling cycles
	DefaultInterval = 500 * time.Millisecond

	// DefaultMaxAge is how long a cached reading stays usable
	DefaultMaxAge = 5 * time.Second

	// ReadTimeout bounds the wait for a single response
	ReadTimeout = time.Second

	maxLineLength  = 64
	maxStatusLines = 4
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when the serial line fails
	ErrBrokenPipe = errors.New("broken pipe")

	errTimeout = errors.New("response timeout")
)

// WithLogger sets the logger for the poller
func WithLogger(logger *slog.Logger) func(p *Poller) {
	return func(p *Poller) {
		p.logger = logger.With(slog.String("component", "sensor"))
	}
}

// WithInterval sets the pause between polling cycles
func WithInterval(d time.Duration) func(p *Poller) {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithMaxAge sets how long a cached reading is served before it is reported unavailable
func WithMaxAge(d time.Duration) func(p *Poller) {
	return func(p *Poller) {
		p.maxAge = d
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(p *Poller) {
	return func(p *Poller) {
		p.parseErrorsThreshold = threshold
	}
}

type reading struct {
	value float64
	at    time.Time
}

// Poller is a sampling.SensorSource backed by a serial probe board
type Poller struct {
	port     io.ReadWriter
	closer   io.Closer
	channels []string

	mu       sync.RWMutex
	readings map[string]reading

	isPolling atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	interval             time.Duration
	maxAge               time.Duration
	parseErrorsThreshold uint8
	now                  func() time.Time
	logger               *slog.Logger
}

var _ sampling.SensorSource = (*Poller)(nil)

// Open opens the serial device and returns a poller for the given channels
func Open(device string, baud int, channels []string, options ...func(p *Poller)) (*Poller, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port '%s': %w", device, err)
	}

	if err = port.SetReadTimeout(ReadTimeout); err != nil {
		return nil, errors.Join(fmt.Errorf("setting read timeout: %w", err), port.Close())
	}

	p := NewPoller(port, channels, options...)
	p.closer = port

	return p, nil
}

// NewPoller creates a poller over an already open line
func NewPoller(port io.ReadWriter, channels []string, options ...func(p *Poller)) *Poller {
	p := Poller{
		port:                 port,
		channels:             channels,
		readings:             make(map[string]reading, len(channels)),
		interval:             DefaultInterval,
		maxAge:               DefaultMaxAge,
		parseErrorsThreshold: ParseErrorsThreshold,
		now:                  time.Now,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Reading returns the cached value of channel. It fails with
// sampling.ErrSensorUnavailable when the channel was never read or its
// reading is older than the configured maximum age.
func (p *Poller) Reading(channel string) (float64, error) {
	p.mu.RLock()
	r, ok := p.readings[channel]
	p.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%w: channel %s not read yet", sampling.ErrSensorUnavailable, channel)
	}
	if age := p.now().Sub(r.at); p.maxAge > 0 && age > p.maxAge {
		return r.value, fmt.Errorf("%w: channel %s reading is %s old", sampling.ErrSensorUnavailable, channel, age.Truncate(time.Millisecond))
	}

	return r.value, nil
}

// BeginPolling starts cycling through the channels in the background. The
// returned channel receives the error that stopped polling, if any, and is
// closed once polling ends.
func (p *Poller) BeginPolling(ctx context.Context) (<-chan error, error) {
	if !p.isPolling.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("poller is already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	pollingStopped := make(chan error, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(pollingStopped)
		defer p.isPolling.Store(false)

		p.logger.Info("starting probe polling...", slog.Any("channels", p.channels))

		if err := p.run(ctx); err != nil {
			p.logger.Error(err.Error())
			pollingStopped <- err
		}

		p.logger.Info("probe polling stopped")
	}()

	return pollingStopped, nil
}

// Stop ends polling and waits for the background goroutine to exit
func (p *Poller) Stop() {
	if !p.isPolling.Load() {
		return // already stopped
	}

	p.cancel()
	p.wg.Wait()
}

// IsPolling returns true while the background goroutine runs
func (p *Poller) IsPolling() bool {
	return p.isPolling.Load()
}

// Close stops polling and closes the serial port opened by Open
func (p *Poller) Close() error {
	p.Stop()

	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func (p *Poller) run(ctx context.Context) error {
	var parseErrors uint8

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		for _, ch := range p.channels {
			if ctx.Err() != nil {
				return nil
			}

			err := p.poll(ch)
			switch {
			case err == nil:
				parseErrors = 0 // reset counter

			case errors.Is(err, ErrBrokenPipe):
				return err

			default:
				parseErrors++
				p.logger.Warn(fmt.Sprintf("error reading probe: %s", err.Error()), slog.String("channel", ch))

				if parseErrors >= p.parseErrorsThreshold {
					return ErrTooManyParseErrors
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll queries one channel and caches its reading
func (p *Poller) poll(channel string) error {
	if _, err := io.WriteString(p.port, channel+":R\r"); err != nil {
		return fmt.Errorf("%w: writing query: %w", ErrBrokenPipe, err)
	}

	for i := 0; i < maxStatusLines; i++ {
		line, err := p.readLine()
		if err != nil {
			return err
		}
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}

		value, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return fmt.Errorf("parsing response '%s': %w", line, err)
		}

		p.mu.Lock()
		p.readings[channel] = reading{value: value, at: p.now()}
		p.mu.Unlock()

		return nil
	}

	return fmt.Errorf("no reading after %d status lines", maxStatusLines)
}

// readLine reads up to the next '\r' or '\n'. A zero-length read without an
// error is a serial read timeout.
func (p *Poller) readLine() (string, error) {
	var (
		line strings.Builder
		buf  [1]byte
	)

	for line.Len() < maxLineLength {
		n, err := p.port.Read(buf[:])
		if err != nil {
			return "", fmt.Errorf("%w: reading response: %w", ErrBrokenPipe, err)
		}
		if n == 0 {
			return "", errTimeout
		}

		if buf[0] == '\r' || buf[0] == '\n' {
			return strings.TrimSpace(line.String()), nil
		}
		line.WriteByte(buf[0])
	}

	return "", fmt.Errorf("response exceeds %d bytes", maxLineLength)
}
