package nav

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/auv-navigation/internal/geofence"
	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/traverse"
)

// Status is a point-in-time summary of the navigator
type Status struct {
	State           traverse.State
	Traversal       traverse.TraversalState
	Active          *motor.Command
	Pending         int
	Override        motor.Override
	Heading         float64
	Voltage         uint16 // Millivolts
	BatteryCritical bool
	Edges           geofence.Edges
	MissionID       string
	Dropped         uint64
	LastSample      time.Time
}

// Format renders the status as a few human readable lines
func (s Status) Format(now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "state: %s, mission running: %t, loops: %d\n", s.State, s.Traversal.MissionRunning, s.Traversal.LoopCount)
	if s.MissionID != "" {
		fmt.Fprintf(&sb, "mission: %s\n", s.MissionID)
	}

	active := "none"
	if s.Active != nil {
		active = s.Active.String()
	}
	fmt.Fprintf(&sb, "active: %s, pending: %s\n", active, humanize.Comma(int64(s.Pending)))

	fmt.Fprintf(&sb, "heading: %.1f°, battery: %sV", s.Heading, humanize.FtoaWithDigits(float64(s.Voltage)/1000, 2))
	if s.BatteryCritical {
		sb.WriteString(" (critical)")
	}
	sb.WriteString("\n")

	if s.Edges.Length() > 0 {
		fmt.Fprintf(&sb, "fence: %s\n", s.Edges)
	}

	last := "never"
	if !s.LastSample.IsZero() {
		last = humanize.RelTime(s.LastSample, now, "ago", "from now")
	}
	fmt.Fprintf(&sb, "last sample: %s, dropped telemetry: %s", last, humanize.Comma(int64(s.Dropped)))

	return sb.String()
}
