package app

import (
	"math"
	"time"

	"github.com/golang/geo/r2"

	"github.com/roman-kulish/auv-navigation/internal/mission"
)

// earthRadius matches the radius the navigator plans legs with
const earthRadius = 6378100.0

// ValueBounds is the range of plotted probe readings
type ValueBounds struct {
	Min float64
	Max float64
}

// SurveyPoint is one reading projected onto the local plane, in meters east
// (X) and north (Y) of the first fix of the mission
type SurveyPoint struct {
	Position  r2.Point
	Value     float64
	Timestamp time.Time
}

// SurveyData accumulates the readings of a single probe channel
type SurveyData struct {
	Mission *mission.Mission
	Channel string
	Name    string

	Points []SurveyPoint
	Area   r2.Rect
	Bounds ValueBounds

	TimestampStart time.Time
	TimestampEnd   time.Time

	origin    *r2.Point // First fix in degrees (X longitude, Y latitude)
	lonScale  float64   // Meters per degree of longitude at the origin
	skipped   int
	hasValues bool
}

func NewSurveyData(m *mission.Mission, channel string) *SurveyData {
	return &SurveyData{
		Mission: m,
		Channel: channel,
		Area:    r2.EmptyRect(),
	}
}

// Update adds an observation. Readings without a position fix are counted
// but not plotted.
func (s *SurveyData) Update(o *mission.Observation) {
	if o.Latitude == 0 && o.Longitude == 0 {
		s.skipped++
		return
	}

	if s.origin == nil {
		s.origin = &r2.Point{X: o.Longitude, Y: o.Latitude}
		s.lonScale = metersPerDegree * math.Cos(o.Latitude*math.Pi/180)
		s.TimestampStart = o.Timestamp
	}
	if s.Name == "" {
		s.Name = o.Name
	}

	p := s.project(o.Latitude, o.Longitude)
	s.Points = append(s.Points, SurveyPoint{Position: p, Value: o.Value, Timestamp: o.Timestamp})
	s.Area = s.Area.AddPoint(p)

	if !s.hasValues {
		s.Bounds = ValueBounds{Min: o.Value, Max: o.Value}
		s.hasValues = true
	} else {
		s.Bounds.Min = math.Min(s.Bounds.Min, o.Value)
		s.Bounds.Max = math.Max(s.Bounds.Max, o.Value)
	}

	if o.Timestamp.Before(s.TimestampStart) {
		s.TimestampStart = o.Timestamp
	}
	if o.Timestamp.After(s.TimestampEnd) {
		s.TimestampEnd = o.Timestamp
	}
}

// Skipped returns the number of readings without a position fix
func (s *SurveyData) Skipped() int {
	return s.skipped
}

// Empty reports whether there is nothing to plot
func (s *SurveyData) Empty() bool {
	return len(s.Points) == 0
}

var metersPerDegree = earthRadius * math.Pi / 180

// project maps a fix onto an equirectangular plane centred on the origin,
// which is accurate enough over a survey area of a few hundred meters
func (s *SurveyData) project(lat, lon float64) r2.Point {
	return r2.Point{
		X: (lon - s.origin.X) * s.lonScale,
		Y: (lat - s.origin.Y) * metersPerDegree,
	}
}
