package geofence

import (
	"errors"
	"math"
	"testing"
)

func TestDeriveEdges(t *testing.T) {
	// roughly a 111m x 222m rectangle on the equator
	vertices := []Vertex{
		{Lat: 0, Lon: 0},
		{Lat: 0.001, Lon: 0},
		{Lat: 0.001, Lon: 0.002},
		{Lat: 0, Lon: 0.002},
	}

	edges, err := DeriveEdges(vertices)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if math.Abs(edges.Width()-111.3) > 0.5 {
		t.Errorf("Expected width ~111.3m, got %f", edges.Width())
	}
	if math.Abs(edges.Length()-222.6) > 0.5 {
		t.Errorf("Expected length ~222.6m, got %f", edges.Length())
	}
}

func TestDeriveEdges_Malformed(t *testing.T) {
	testCases := []struct {
		name     string
		vertices []Vertex
	}{
		{"no vertices", nil},
		{"single vertex", []Vertex{{Lat: 1, Lon: 1}}},
		{"latitude out of range", []Vertex{{Lat: 91, Lon: 0}, {Lat: 0, Lon: 0}}},
		{"longitude out of range", []Vertex{{Lat: 0, Lon: 0}, {Lat: 0, Lon: -181}}},
		{"not a number", []Vertex{{Lat: math.NaN(), Lon: 0}, {Lat: 0, Lon: 0}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveEdges(tc.vertices)
			if err == nil {
				t.Fatal("Expected error for malformed fence")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got %v", err)
			}

			var me *MalformedError
			if !errors.As(err, &me) {
				t.Errorf("Expected *MalformedError, got %T", err)
			}
		})
	}
}

func TestBearing(t *testing.T) {
	origin := Vertex{Lat: 10, Lon: 10}
	testCases := []struct {
		name string
		to   Vertex
		want float64
	}{
		{"north", Vertex{Lat: 10.01, Lon: 10}, 0},
		{"east", Vertex{Lat: 10, Lon: 10.01}, 90},
		{"south", Vertex{Lat: 9.99, Lon: 10}, 180},
		{"west", Vertex{Lat: 10, Lon: 9.99}, 270},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Bearing(origin, tc.to); math.Abs(got-tc.want) > 0.1 {
				t.Errorf("Expected bearing %v, got %v", tc.want, got)
			}
		})
	}
}
