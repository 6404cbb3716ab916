package nav

import (
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/traverse"
)

// Config holds the navigator tunables
type Config struct {
	Planner traverse.Config

	// Dense sweep defaults
	DenseEdge  float64
	DenseLoops int

	MoveDuration    time.Duration
	SurfacePWM      int
	SurfaceDuration time.Duration

	// BatteryCriticalVoltage in millivolts; zero disables the check
	BatteryCriticalVoltage uint16
	BatteryHysteresis      uint16

	Heartbeat    time.Duration
	ResendCount  int
	IdleInterval time.Duration

	SampleInterval time.Duration
	Channels       []sampling.Channel

	InboxSize int
}

// DefaultConfig returns the configuration used in field trials
func DefaultConfig() Config {
	return Config{
		Planner:         traverse.DefaultConfig(),
		DenseEdge:       10,
		DenseLoops:      3,
		MoveDuration:    time.Second,
		SurfacePWM:      1600,
		SurfaceDuration: 3 * time.Second,

		BatteryHysteresis: 200,

		Heartbeat:    motor.DefaultHeartbeat,
		ResendCount:  motor.DefaultResendCount,
		IdleInterval: motor.DefaultIdleInterval,

		SampleInterval: sampling.DefaultSampleInterval,
		Channels:       sampling.DefaultChannels,

		InboxSize: 256,
	}
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	if c.Planner.TransitLeg <= 0 {
		errs = append(errs, fmt.Errorf("transit leg must be positive, got %v", c.Planner.TransitLeg))
	}
	if c.Planner.SweepForwardLegs < 0 {
		errs = append(errs, fmt.Errorf("sweep forward legs must not be negative, got %d", c.Planner.SweepForwardLegs))
	}
	if c.Planner.SweepSideways <= 0 {
		errs = append(errs, fmt.Errorf("sweep sideways step must be positive, got %v", c.Planner.SweepSideways))
	}
	if c.Planner.TraversePWM < motor.PWMMin || c.Planner.TraversePWM > motor.PWMMax {
		errs = append(errs, fmt.Errorf("traverse pwm %d outside [%d, %d]", c.Planner.TraversePWM, motor.PWMMin, motor.PWMMax))
	}
	if c.SurfacePWM < motor.PWMMin || c.SurfacePWM > motor.PWMMax {
		errs = append(errs, fmt.Errorf("surface pwm %d outside [%d, %d]", c.SurfacePWM, motor.PWMMin, motor.PWMMax))
	}
	if c.Heartbeat <= 0 {
		errs = append(errs, errors.New("heartbeat must be positive"))
	}
	if c.IdleInterval <= 0 {
		errs = append(errs, errors.New("idle interval must be positive"))
	}
	if c.ResendCount < 0 {
		errs = append(errs, errors.New("resend count must not be negative"))
	}
	if c.SampleInterval <= 0 {
		errs = append(errs, errors.New("sample interval must be positive"))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("at least one sensor channel is required"))
	}

	var hasChannel bool
	for _, ch := range c.Channels {
		if ch.ID == c.Planner.Channel {
			hasChannel = true
		}
	}
	if len(c.Channels) > 0 && !hasChannel {
		errs = append(errs, fmt.Errorf("threshold channel '%s' is not sampled", c.Planner.Channel))
	}

	return errors.Join(errs...)
}
