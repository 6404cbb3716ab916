package sampling

import (
	"errors"
	"time"
)

// ErrSensorUnavailable is returned by a SensorSource that has no fresh reading
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Channel identifies one probe of the environmental sensor board
type Channel struct {
	ID   string `yaml:"id" json:"id"`     // Board address used to query the probe
	Name string `yaml:"name" json:"name"` // Short label written to the sample log
}

// SensorSource yields the latest reading of a probe channel. Reading must not
// block: implementations poll the hardware elsewhere and return a cached value.
type SensorSource interface {
	Reading(channel string) (float64, error)
}

// Recorder persists sample and battery records. Both calls are fire-and-forget
// and must not block the control tick.
type Recorder interface {
	RecordSample(s Sample)
	RecordBattery(b BatteryDraw)
}

// Reading is a single probe value within a sample
type Reading struct {
	Channel Channel
	Value   float64
	Stale   bool // The probe failed and Value repeats the previous reading
}

// Sample is one environmental sample
type Sample struct {
	Timestamp   time.Time
	Readings    []Reading
	Temperature float64 // Water temperature in degrees Celsius
	Latitude    float64 // GPS latitude in degrees
	Longitude   float64 // GPS longitude in degrees
}

// Value returns the reading of the channel with the given ID
func (s Sample) Value(channelID string) (float64, bool) {
	for _, r := range s.Readings {
		if r.Channel.ID == channelID {
			return r.Value, !r.Stale
		}
	}
	return 0, false
}

// BatteryDraw is one power consumption record
type BatteryDraw struct {
	Timestamp         time.Time
	MilliampsPerMeter float64
	Voltage           uint16        // Battery voltage in millivolts
	Interval          time.Duration // Interval the draw was accumulated over
}
