package telemetry

import (
	"math"
	"time"
)

// Position is a single position fix of the vehicle
type Position struct {
	Latitude    float64 // GPS latitude in degrees
	Longitude   float64 // GPS longitude in degrees
	Altitude    float64 // Altitude (MSL) in meters
	RelativeAlt float64 // Altitude above home in meters, negative when submerged
	VX          int16   // Ground X speed (latitude, positive north) in cm/s
	VY          int16   // Ground Y speed (longitude, positive east) in cm/s
	VZ          int16   // Ground Z speed (altitude, positive down) in cm/s
	Heading     uint16  // Vehicle heading (yaw angle) in centidegrees, 0..35999
}

// Pressure is a single reading of a pressure/temperature sensor
type Pressure struct {
	Absolute    float32 // Absolute pressure in hPa
	Diff        float32 // Differential pressure in hPa
	Temperature int16   // Temperature in centidegrees Celsius
}

// Power is the main battery status
type Power struct {
	Voltage uint16 // Battery voltage in millivolts, 0 when unknown
	Current int16  // Battery current in centiamperes (10 mA), -1 when unknown
}

// Snapshot is the latest telemetry the vehicle reported. Every field group is
// owned by exactly one update hook and overwritten wholesale by it.
//
// Snapshot carries no lock: all writers and readers must run on the same
// serialized control tick. Transport goroutines post updates to an Inbox instead
// of writing here directly.
type Snapshot struct {
	Position  Position    // Latest position fix
	Pressure  [2]Pressure // [0] external temperature probe, [1] depth sensor
	Power     Power       // Latest battery status
	UpdatedAt time.Time   // Time of the latest update of any field group
}

// NewSnapshot returns a snapshot with the battery marked as unknown
func NewSnapshot() *Snapshot {
	return &Snapshot{Power: Power{Current: -1}}
}

// UpdatePosition overwrites the position fix and returns the new heading, so
// callers can act on heading edges.
func (s *Snapshot) UpdatePosition(p Position, at time.Time) uint16 {
	s.Position = p
	s.UpdatedAt = at
	return p.Heading
}

// UpdatePressure overwrites one of the two pressure sensor readings. Indexes out
// of range are ignored.
func (s *Snapshot) UpdatePressure(sensor int, p Pressure, at time.Time) {
	if sensor < 0 || sensor >= len(s.Pressure) {
		return
	}
	s.Pressure[sensor] = p
	s.UpdatedAt = at
}

// UpdatePower overwrites the battery status
func (s *Snapshot) UpdatePower(p Power, at time.Time) {
	s.Power = p
	s.UpdatedAt = at
}

// HeadingDegrees returns the heading in degrees, [0, 360)
func (s *Snapshot) HeadingDegrees() float64 {
	return float64(s.Position.Heading) / 100
}

// HorizontalSpeed returns the magnitude of the horizontal velocity in m/s
func (s *Snapshot) HorizontalSpeed() float64 {
	vx := float64(s.Position.VX) / 100
	vy := float64(s.Position.VY) / 100
	return math.Hypot(vx, vy)
}
