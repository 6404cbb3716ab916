package mission

import (
	"fmt"
	"time"
)

const (
	KindUnderwater Kind = "underwater"
	KindDense      Kind = "dense"
	KindSurface    Kind = "surface"
)

// Kind is the command that started a mission
type Kind string

// ParseKind validates a mission kind read back from storage
func ParseKind(value string) (Kind, error) {
	switch k := Kind(value); k {
	case KindUnderwater, KindDense, KindSurface:
		return k, nil
	default:
		return "", fmt.Errorf("unknown mission kind '%s'", value)
	}
}

// Mission represents a single autonomous run. Every sample and battery record
// taken while it is active is linked to its ID.
type Mission struct {
	ID        string    `json:"id"`                      // UUID assigned when the mission starts
	Kind      Kind      `json:"kind"`                    // Command that started the mission
	StartTime time.Time `json:"startTime"`               // When the mission started
	Config    *string   `json:"config,string,omitempty"` // Optional mission parameters in JSON format
}

// Observation is a single probe reading at a known position, as read back from
// the mission store.
type Observation struct {
	Timestamp   time.Time `json:"timestamp"`
	Channel     string    `json:"channel"`     // Probe channel ID
	Name        string    `json:"name"`        // Probe label, e.g. "DO" or "Cond"
	Value       float64   `json:"value"`       // Probe reading
	Stale       bool      `json:"stale"`       // Value repeats an earlier reading
	Temperature float64   `json:"temperature"` // Water temperature in degrees Celsius
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
}

// Params are the parameters recorded alongside a mission
type Params struct {
	Waypoints    int     `json:"waypoints,omitempty"`
	FenceWidth   float64 `json:"fenceWidth,omitempty"`
	FenceLength  float64 `json:"fenceLength,omitempty"`
	SweepRows    int     `json:"sweepRows,omitempty"`
	SweepSpacing float64 `json:"sweepSpacing,omitempty"`
	BaseHeading  float64 `json:"baseHeading,omitempty"`
}
