// Package heading implements the closed-loop yaw correction used to orient the
// vehicle before every leg of a traversal.
package heading

import (
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

const (
	// Deadband is the offset, in degrees, treated as already corrected
	Deadband = 5.0

	// TurnRightPWM and TurnLeftPWM drive the yaw channel during a correction
	TurnRightPWM = 1600
	TurnLeftPWM  = 1400

	// TurnDuration is how long a single correction pulse lasts
	TurnDuration = 2 * time.Second
)

// Enqueuer accepts timed motor commands
type Enqueuer interface {
	Enqueue(c motor.Command)
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "heading"))
	}
}

// Controller corrects a signed heading offset, positive meaning turn right.
//
// Step is called once per tick and makes at most one enqueue decision. The
// offset is reduced by the signed heading change observed since the previous
// call: turning right raises the heading, so a positive offset shrinks, and
// turning left lowers it, so a negative offset shrinks. Both directions use the
// same convention.
type Controller struct {
	queue Enqueuer

	offset   float64
	previous float64
	active   bool
	pulses   int

	logger *slog.Logger
}

// NewController creates a controller enqueueing its yaw pulses onto q
func NewController(q Enqueuer, options ...func(c *Controller)) *Controller {
	c := Controller{
		queue:  q,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// SetOffset starts a correction of offset degrees relative to the current
// heading in s.
func (c *Controller) SetOffset(offset float64, s *telemetry.Snapshot) {
	c.offset = offset
	c.previous = s.HeadingDegrees()
	c.active = math.Abs(offset) > Deadband
	c.pulses = 0

	c.logger.Debug("orienting", slog.Float64("offset", offset), slog.Float64("heading", c.previous))
}

// Orient starts a correction towards an absolute heading in degrees, taking
// the shorter way round.
func (c *Controller) Orient(target float64, s *telemetry.Snapshot) {
	c.SetOffset(Wrap180(target-s.HeadingDegrees()), s)
}

// Step advances the correction by one increment and reports whether the
// vehicle is within the deadband.
func (c *Controller) Step(s *telemetry.Snapshot) bool {
	if !c.active {
		return true
	}

	current := s.HeadingDegrees()
	c.offset -= Wrap180(current - c.previous)
	c.previous = current

	if math.Abs(c.offset) <= Deadband {
		c.active = false
		c.logger.Debug("oriented", slog.Float64("heading", current), slog.Int("pulses", c.pulses))
		return true
	}

	pwm := TurnRightPWM
	if c.offset < 0 {
		pwm = TurnLeftPWM
	}
	c.queue.Enqueue(motor.NewCommand(motor.AxisYaw, pwm, TurnDuration))
	c.pulses++

	return false
}

// Offset returns the remaining correction in degrees
func (c *Controller) Offset() float64 {
	return c.offset
}

// Done reports whether there is no correction in progress
func (c *Controller) Done() bool {
	return !c.active
}

// Cancel abandons the correction in progress
func (c *Controller) Cancel() {
	c.active = false
	c.offset = 0
}

// Wrap180 normalises an angle in degrees into (-180, 180]
func Wrap180(deg float64) float64 {
	deg = math.Mod(deg, 360)
	switch {
	case deg > 180:
		deg -= 360
	case deg <= -180:
		deg += 360
	}
	return deg
}

// Wrap360 normalises an angle in degrees into [0, 360)
func Wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
