// Package geofence derives the coverage area dimensions from an ordered list of
// fence vertices and provides the great-circle helpers used to plan legs.
package geofence

import (
	"errors"
	"fmt"
	"math"
)

// earthRadius is the mean Earth radius in meters used by the flight stack
const earthRadius = 6378100.0

// ErrMalformed is wrapped by every geofence validation error
var ErrMalformed = errors.New("geofence malformed")

// MalformedError describes why a fence could not be used
type MalformedError struct {
	msg string
}

func NewMalformedError(format string, args ...any) *MalformedError {
	return &MalformedError{msg: fmt.Sprintf(format, args...)}
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformed.Error(), e.msg)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// Vertex is a single fence point in degrees
type Vertex struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// Validate checks the vertex is a real coordinate
func (v Vertex) Validate() error {
	if math.IsNaN(v.Lat) || math.IsNaN(v.Lon) || math.IsInf(v.Lat, 0) || math.IsInf(v.Lon, 0) {
		return NewMalformedError("vertex %v is not a number", v)
	}
	if v.Lat < -90 || v.Lat > 90 {
		return NewMalformedError("latitude %f out of range", v.Lat)
	}
	if v.Lon < -180 || v.Lon > 180 {
		return NewMalformedError("longitude %f out of range", v.Lon)
	}
	return nil
}

// Edges are the dimensions of the coverage rectangle in meters. They are
// derived once at mission start and never modified afterwards.
type Edges struct {
	width  float64
	length float64
}

// Width returns the shortest side in meters
func (e Edges) Width() float64 { return e.width }

// Length returns the longest side in meters
func (e Edges) Length() float64 { return e.length }

func (e Edges) String() string {
	return fmt.Sprintf("%.1fm x %.1fm", e.width, e.length)
}

// DeriveEdges computes (width, length) as the shortest and the longest distance
// between consecutive vertices.
func DeriveEdges(vertices []Vertex) (Edges, error) {
	if len(vertices) < 2 {
		return Edges{}, NewMalformedError("need at least 2 vertices, got %d", len(vertices))
	}

	for i, v := range vertices {
		if err := v.Validate(); err != nil {
			return Edges{}, fmt.Errorf("vertex %d: %w", i, err)
		}
	}

	width, length := math.Inf(1), 0.0
	for i := 0; i < len(vertices)-1; i++ {
		d := Distance(vertices[i], vertices[i+1])
		width = min(width, d)
		length = max(length, d)
	}

	return Edges{width: width, length: length}, nil
}

// Distance returns the great-circle distance between two points in meters
func Distance(a, b Vertex) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Bearing returns the initial bearing from a to b in degrees, [0, 360)
func Bearing(a, b Vertex) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
