package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/geofence"
	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/nav"
)

const usage = `commands:
  auto underwater [start]   run the mission through every configured waypoint
  auto dense                sweep the area around the current position
  auto surface              abort and return to the surface
  auto setfence             derive the fence edges
  move <f|l|z|roll|yaw|all> <pwm> [seconds]
  status
  abort`

// Usage returns the console command reference
func Usage() string {
	return usage
}

var errUsage = errors.New("invalid command")

// commander is the navigator command surface driven by the console
type commander interface {
	StartMission(now time.Time) error
	StartDense(now time.Time) (int, error)
	Surface(now time.Time)
	SetFence() (geofence.Edges, error)
	Move(now time.Time, axis motor.Axis, pwm int, d time.Duration) motor.Command
	Abort(now time.Time)
	Status() nav.Status
}

var _ commander = (*nav.Navigator)(nil)

// Execute runs one console line against the navigator and returns the text to
// show the operator
func Execute(c commander, line string, now time.Time) (string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}

	switch strings.ToLower(args[0]) {
	case "auto":
		return executeAuto(c, args[1:], now)

	case "move":
		return executeMove(c, args[1:], now)

	case "status":
		return c.Status().Format(now), nil

	case "abort", "stop":
		c.Abort(now)
		return "aborted", nil

	case "help", "?":
		return usage, nil

	default:
		return "", fmt.Errorf("%w: unknown command '%s'", errUsage, args[0])
	}
}

func executeAuto(c commander, args []string, now time.Time) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: auto requires a sub-command", errUsage)
	}

	switch strings.ToLower(args[0]) {
	case "underwater":
		if len(args) > 1 && args[1] != "start" {
			return "", fmt.Errorf("%w: unknown argument '%s'", errUsage, args[1])
		}
		if err := c.StartMission(now); err != nil {
			return "", fmt.Errorf("starting mission: %w", err)
		}
		return "mission started", nil

	case "dense":
		rows, err := c.StartDense(now)
		if err != nil {
			return "", fmt.Errorf("starting dense sweep: %w", err)
		}
		return fmt.Sprintf("dense sweep started, %d rows", rows), nil

	case "surface":
		c.Surface(now)
		return "surfacing", nil

	case "setfence":
		edges, err := c.SetFence()
		if err != nil {
			return "", fmt.Errorf("setting fence: %w", err)
		}
		return edges.String(), nil

	default:
		return "", fmt.Errorf("%w: unknown auto sub-command '%s'", errUsage, args[0])
	}
}

func executeMove(c commander, args []string, now time.Time) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", fmt.Errorf("%w: usage: move <f|l|z|roll|yaw|all> <pwm> [seconds]", errUsage)
	}

	axis, err := motor.ParseAxis(args[0])
	if err != nil {
		return "", fmt.Errorf("%w: %w", errUsage, err)
	}

	pwm, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("%w: invalid pwm '%s'", errUsage, args[1])
	}

	var d time.Duration
	if len(args) == 3 {
		seconds, err := strconv.ParseFloat(args[2], 64)
		if err != nil || seconds <= 0 {
			return "", fmt.Errorf("%w: invalid duration '%s'", errUsage, args[2])
		}
		d = time.Duration(seconds * float64(time.Second))
	}

	return c.Move(now, axis, pwm, d).String(), nil
}
