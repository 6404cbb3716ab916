// Package canbus sends RC overrides to a thruster controller on a SocketCAN bus.
//
// The 16 override channels are split across four consecutive frame IDs. Each
// frame carries four channels as little-endian uint16 pulse widths.
package canbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"github.com/roman-kulish/auv-navigation/internal/motor"
)

const (
	// DefaultBaseID is the frame ID carrying channels 1-4
	DefaultBaseID = 0x300

	// DefaultWriteTimeout bounds a single Send
	DefaultWriteTimeout = 50 * time.Millisecond

	channelsPerFrame  = 4
	framesPerOverride = motor.NumChannels / channelsPerFrame
)

// Config describes the CAN interface and the frame IDs to use
type Config struct {
	Interface string `yaml:"interface"` // e.g. "can0" or "vcan0"
	BaseID    uint32 `yaml:"baseID"`
}

// transmitter is the part of socketcan.Transmitter the sink needs
type transmitter interface {
	TransmitFrame(ctx context.Context, frame can.Frame) error
}

// WithLogger sets the logger for the sink
func WithLogger(logger *slog.Logger) func(s *Sink) {
	return func(s *Sink) {
		s.logger = logger.With(slog.String("component", "canbus"))
	}
}

// WithWriteTimeout bounds how long Send may wait for the bus
func WithWriteTimeout(d time.Duration) func(s *Sink) {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Sink is a motor.Sink writing RC overrides onto a CAN bus
type Sink struct {
	conn    net.Conn
	tx      transmitter
	baseID  uint32
	timeout time.Duration

	logger *slog.Logger
}

var _ motor.Sink = (*Sink)(nil)

// Dial opens the CAN interface
func Dial(ctx context.Context, config Config, options ...func(s *Sink)) (*Sink, error) {
	conn, err := socketcan.DialContext(ctx, "can", config.Interface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial '%s': %w", config.Interface, err)
	}

	s := newSink(socketcan.NewTransmitter(conn), config.BaseID, options...)
	s.conn = conn

	return s, nil
}

func newSink(tx transmitter, baseID uint32, options ...func(s *Sink)) *Sink {
	if baseID == 0 {
		baseID = DefaultBaseID
	}

	s := Sink{
		tx:      tx,
		baseID:  baseID,
		timeout: DefaultWriteTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Send transmits the override as four frames. Any bus error is reported as
// motor.ErrLinkUnavailable.
func (s *Sink) Send(o motor.Override) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	for _, frame := range EncodeOverride(o, s.baseID) {
		if err := s.tx.TransmitFrame(ctx, frame); err != nil {
			s.logger.Debug("transmit failed", slog.Uint64("id", uint64(frame.ID)), slog.String("error", err.Error()))
			return fmt.Errorf("%w: frame 0x%X: %w", motor.ErrLinkUnavailable, frame.ID, err)
		}
	}

	return nil
}

// Close closes the CAN socket
func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// EncodeOverride splits the override array into CAN frames with consecutive
// IDs starting at baseID.
func EncodeOverride(o motor.Override, baseID uint32) [framesPerOverride]can.Frame {
	var frames [framesPerOverride]can.Frame

	for i := range frames {
		frames[i].ID = baseID + uint32(i)
		frames[i].Length = channelsPerFrame * 2
		for j := 0; j < channelsPerFrame; j++ {
			binary.LittleEndian.PutUint16(frames[i].Data[j*2:], o[i*channelsPerFrame+j])
		}
	}

	return frames
}

// DecodeOverride reverses EncodeOverride. Frames with IDs outside the override
// range are ignored.
func DecodeOverride(frames []can.Frame, baseID uint32) (motor.Override, error) {
	o := motor.NeutralOverride()
	seen := 0

	for _, f := range frames {
		if f.ID < baseID || f.ID >= baseID+framesPerOverride {
			continue
		}
		if f.Length != channelsPerFrame*2 {
			return o, fmt.Errorf("frame 0x%X: expected length %d, got %d", f.ID, channelsPerFrame*2, f.Length)
		}

		i := int(f.ID - baseID)
		for j := 0; j < channelsPerFrame; j++ {
			o[i*channelsPerFrame+j] = binary.LittleEndian.Uint16(f.Data[j*2:])
		}
		seen++
	}

	if seen != framesPerOverride {
		return o, fmt.Errorf("expected %d override frames, got %d", framesPerOverride, seen)
	}

	return o, nil
}
