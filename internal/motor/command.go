package motor

import (
	"fmt"
	"strings"
	"time"
)

const (
	PWMMin     = 1000
	PWMMax     = 2000
	PWMNeutral = 1500
)

const (
	AxisForward Axis = iota + 1
	AxisLateral
	AxisVertical
	AxisRoll
	AxisYaw
	AxisStopAll
)

// Axis selects which thruster group a command drives
type Axis int

func (a Axis) String() string {
	switch a {
	case AxisForward:
		return "forward"
	case AxisLateral:
		return "lateral"
	case AxisVertical:
		return "vertical"
	case AxisRoll:
		return "roll"
	case AxisYaw:
		return "yaw"
	case AxisStopAll:
		return "all"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Channel returns the 0-based RC override channel driven by the axis. StopAll
// has no single channel and returns -1.
func (a Axis) Channel() int {
	switch a {
	case AxisVertical:
		return 1
	case AxisRoll:
		return 2
	case AxisYaw:
		return 3
	case AxisForward:
		return 4
	case AxisLateral:
		return 5
	default:
		return -1
	}
}

// ParseAxis converts a console axis name into an Axis. Both the short names
// used by the move command (f, l, z) and the long names are accepted.
func ParseAxis(value string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "f", "x", "forward":
		return AxisForward, nil
	case "l", "y", "lateral":
		return AxisLateral, nil
	case "z", "vertical":
		return AxisVertical, nil
	case "roll":
		return AxisRoll, nil
	case "yaw":
		return AxisYaw, nil
	case "all", "stop":
		return AxisStopAll, nil
	default:
		return 0, fmt.Errorf("unknown axis %q", value)
	}
}

// Command is a timed thruster command. It is immutable once created and is
// consumed exactly once by the Executor.
type Command struct {
	axis     Axis
	pwm      uint16
	duration time.Duration
}

// NewCommand creates a command, clamping pwm into [PWMMin, PWMMax] and negative
// durations to zero.
func NewCommand(axis Axis, pwm int, duration time.Duration) Command {
	return Command{
		axis:     axis,
		pwm:      ClampPWM(pwm),
		duration: max(duration, 0),
	}
}

// Stop returns a StopAll command lasting d
func Stop(d time.Duration) Command {
	return NewCommand(AxisStopAll, PWMNeutral, d)
}

func (c Command) Axis() Axis              { return c.axis }
func (c Command) PWM() uint16             { return c.pwm }
func (c Command) Duration() time.Duration { return c.duration }

func (c Command) String() string {
	return fmt.Sprintf("%s pwm=%d for %s", c.axis, c.pwm, c.duration)
}

// ClampPWM keeps a pulse width inside the effective actuator range
func ClampPWM(pwm int) uint16 {
	if pwm < PWMMin {
		return PWMMin
	}
	if pwm > PWMMax {
		return PWMMax
	}
	return uint16(pwm)
}
