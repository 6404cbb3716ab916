// Package mavlink connects the navigation core to the flight controller over
// MAVLink: RC overrides go out, position, pressure and power telemetry come in.
package mavlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

const (
	// DefaultSystemID identifies this companion computer on the MAVLink network
	DefaultSystemID = 254

	// HeartbeatTimeout is how long the flight controller may stay silent before
	// the link is considered unavailable
	HeartbeatTimeout = 3 * time.Second
)

type messageWriter interface {
	WriteMessageAll(m message.Message) error
}

// Poster accepts telemetry updates without blocking
type Poster interface {
	Post(u telemetry.Update) bool
}

// Config describes how to reach the flight controller
type Config struct {
	Endpoints       []string `yaml:"endpoints"`
	SystemID        uint8    `yaml:"systemID"`
	TargetSystem    uint8    `yaml:"targetSystem"`    // 0 accepts telemetry from any system
	TargetComponent uint8    `yaml:"targetComponent"` // Component receiving RC overrides
}

// WithLogger sets the logger for the link
func WithLogger(logger *slog.Logger) func(l *Link) {
	return func(l *Link) {
		l.logger = logger.With(slog.String("component", "mavlink"))
	}
}

// Link is a motor.Sink backed by a gomavlib node. Run pumps inbound telemetry
// into a Poster until the context is cancelled.
type Link struct {
	node   *gomavlib.Node
	writer messageWriter
	inbox  Poster
	config Config

	armed         atomic.Bool
	lastHeartbeat atomic.Int64 // Unix nanoseconds
	received      atomic.Uint64
	posted        atomic.Uint64

	now    func() time.Time
	logger *slog.Logger
}

var _ motor.Sink = (*Link)(nil)

// Dial opens every configured endpoint
func Dial(config Config, inbox Poster, options ...func(l *Link)) (*Link, error) {
	if len(config.Endpoints) == 0 {
		return nil, errors.New("no mavlink endpoints configured")
	}

	endpoints := make([]gomavlib.EndpointConf, len(config.Endpoints))
	for i, e := range config.Endpoints {
		ep, err := ParseEndpoint(e)
		if err != nil {
			return nil, err
		}
		endpoints[i] = ep
	}

	if config.SystemID == 0 {
		config.SystemID = DefaultSystemID
	}
	if config.TargetComponent == 0 {
		config.TargetComponent = uint8(common.MAV_COMP_ID_AUTOPILOT1)
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   endpoints,
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: config.SystemID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mavlink node: %w", err)
	}

	l := Link{
		node:   node,
		writer: node,
		inbox:  inbox,
		config: config,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&l)
	}

	return &l, nil
}

// Send transmits the whole override array. It fails with
// motor.ErrLinkUnavailable, and sends nothing, while the vehicle is disarmed
// or its heartbeat is older than HeartbeatTimeout. Write errors are wrapped
// the same way so the executor can drop the active command.
func (l *Link) Send(o motor.Override) error {
	if err := l.available(); err != nil {
		return err
	}

	target := l.config.TargetSystem
	if target == 0 {
		target = 1
	}

	msg := toOverride(o, target, l.config.TargetComponent)
	if err := l.writer.WriteMessageAll(msg); err != nil {
		return fmt.Errorf("%w: %w", motor.ErrLinkUnavailable, err)
	}
	return nil
}

// Run posts telemetry until ctx is cancelled or the node is closed
func (l *Link) Run(ctx context.Context) error {
	events := l.node.Events()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-events:
			if !ok {
				return nil
			}
			l.handleEvent(evt, time.Now())
		}
	}
}

func (l *Link) handleEvent(evt gomavlib.Event, now time.Time) {
	switch e := evt.(type) {
	case *gomavlib.EventChannelOpen:
		l.logger.Info("channel open", slog.String("channel", e.Channel.String()))

	case *gomavlib.EventChannelClose:
		l.logger.Warn("channel closed", slog.String("channel", e.Channel.String()))

	case *gomavlib.EventParseError:
		l.logger.Debug(fmt.Sprintf("parsing frame: %s", e.Error.Error()))

	case *gomavlib.EventFrame:
		if l.config.TargetSystem != 0 && e.SystemID() != l.config.TargetSystem {
			return
		}
		l.received.Add(1)

		if hb, ok := e.Message().(*common.MessageHeartbeat); ok {
			l.lastHeartbeat.Store(now.UnixNano())
			l.setArmed(isArmed(hb))
			return
		}

		if u, ok := toUpdate(e.Message(), now); ok {
			if l.inbox.Post(u) {
				l.posted.Add(1)
			}
		}
	}
}

func (l *Link) available() error {
	last := l.lastHeartbeat.Load()
	if last == 0 {
		return fmt.Errorf("%w: no heartbeat received", motor.ErrLinkUnavailable)
	}
	if silent := l.now().Sub(time.Unix(0, last)); silent > HeartbeatTimeout {
		return fmt.Errorf("%w: no heartbeat for %s", motor.ErrLinkUnavailable, silent.Round(time.Millisecond))
	}
	if !l.Armed() {
		return fmt.Errorf("%w: vehicle not armed", motor.ErrLinkUnavailable)
	}
	return nil
}

func (l *Link) setArmed(armed bool) {
	if l.armed.Swap(armed) != armed {
		l.logger.Info("arming state changed", slog.Bool("armed", armed))
	}
}

// Armed reports the arming state of the latest heartbeat
func (l *Link) Armed() bool {
	return l.armed.Load()
}

// Stats returns the number of accepted frames and posted telemetry updates
func (l *Link) Stats() (received, posted uint64) {
	return l.received.Load(), l.posted.Load()
}

// Close closes the node and all its endpoints
func (l *Link) Close() {
	l.node.Close()
}
