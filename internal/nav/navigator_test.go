package nav

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/auv-navigation/internal/geofence"
	"github.com/roman-kulish/auv-navigation/internal/mission"
	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

type fakeSink struct {
	sent []motor.Override
}

func (s *fakeSink) Send(o motor.Override) error {
	s.sent = append(s.sent, o)
	return nil
}

func (s *fakeSink) last() motor.Override {
	return s.sent[len(s.sent)-1]
}

type fakeSensors map[string]float64

func (f fakeSensors) Reading(channel string) (float64, error) {
	if v, ok := f[channel]; ok {
		return v, nil
	}
	return 0, sampling.ErrSensorUnavailable
}

type fakeRecorder struct {
	samples []sampling.Sample
	battery []sampling.BatteryDraw
}

func (r *fakeRecorder) RecordSample(s sampling.Sample)       { r.samples = append(r.samples, s) }
func (r *fakeRecorder) RecordBattery(b sampling.BatteryDraw) { r.battery = append(r.battery, b) }

type staticRoute struct {
	waypoints []geofence.Vertex
	fence     []geofence.Vertex
}

func (r staticRoute) Waypoints() ([]geofence.Vertex, error) { return r.waypoints, nil }
func (r staticRoute) Fence() ([]geofence.Vertex, error)     { return r.fence, nil }

type observer struct {
	missions []mission.Mission
	finished []mission.Mission
}

func (o *observer) MissionStarted(m mission.Mission) {
	o.missions = append(o.missions, m)
}

func (o *observer) MissionFinished(m mission.Mission) {
	o.finished = append(o.finished, m)
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// A roughly 111m x 222m rectangle on the equator
var fence = []geofence.Vertex{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.001}, {Lat: 0.002, Lon: 0.001}, {Lat: 0.002, Lon: 0}}

func northOf(meters float64) geofence.Vertex {
	return geofence.Vertex{Lat: meters / 6378100 * 180 / math.Pi}
}

func newTestNavigator(t *testing.T, route staticRoute, options ...func(n *Navigator)) (*Navigator, *fakeSink, *observer) {
	t.Helper()

	sink := &fakeSink{}
	obs := &observer{}
	options = append([]func(n *Navigator){WithStartTime(t0), WithMissionObserver(obs)}, options...)

	n, err := NewNavigator(sink, fakeSensors{"2": 0.1, "3": 400}, &fakeRecorder{}, route, route, options...)
	if err != nil {
		t.Fatalf("Failed to create navigator: %v", err)
	}
	return n, sink, obs
}

func TestNavigator_StartMissionRejectsMalformedFence(t *testing.T) {
	n, _, obs := newTestNavigator(t, staticRoute{
		waypoints: []geofence.Vertex{northOf(10)},
		fence:     fence[:1],
	})

	err := n.StartMission(t0)
	if !errors.Is(err, geofence.ErrMalformed) {
		t.Fatalf("Expected a malformed fence error, got %v", err)
	}

	st := n.Status()
	if st.Traversal.MissionRunning {
		t.Error("Expected no mission to be running")
	}
	if st.Pending != 0 {
		t.Errorf("Expected no pending commands, got %d", st.Pending)
	}
	if len(obs.missions) != 0 {
		t.Errorf("Expected no mission to be recorded, got %d", len(obs.missions))
	}
}

func TestNavigator_StartMissionRequiresWaypoints(t *testing.T) {
	n, _, _ := newTestNavigator(t, staticRoute{fence: fence})

	if err := n.StartMission(t0); !errors.Is(err, ErrNoWaypoints) {
		t.Fatalf("Expected ErrNoWaypoints, got %v", err)
	}
}

func TestNavigator_MissionRunsToCompletion(t *testing.T) {
	n, sink, obs := newTestNavigator(t, staticRoute{
		waypoints: []geofence.Vertex{northOf(5)},
		fence:     fence,
	})

	if err := n.StartMission(t0); err != nil {
		t.Fatalf("Failed to start mission: %v", err)
	}

	if len(obs.missions) != 1 {
		t.Fatalf("Expected 1 recorded mission, got %d", len(obs.missions))
	}
	m := obs.missions[0]
	if m.Kind != mission.KindUnderwater {
		t.Errorf("Expected underwater mission, got %s", m.Kind)
	}
	if _, err := uuid.Parse(m.ID); err != nil {
		t.Errorf("Expected a UUID mission ID, got %q", m.ID)
	}
	if m.Config == nil {
		t.Error("Expected mission parameters to be recorded")
	}

	now := t0
	for i := 0; i < 600 && n.Status().Traversal.MissionRunning; i++ {
		now = now.Add(100 * time.Millisecond)
		n.Tick(now)
	}

	st := n.Status()
	if st.Traversal.MissionRunning {
		t.Fatal("Expected the mission to complete within a minute")
	}
	if st.Traversal.LoopCount != 1 {
		t.Errorf("Expected loop count 1, got %d", st.Traversal.LoopCount)
	}
	if st.Edges.Length() == 0 {
		t.Error("Expected fence edges to be kept")
	}
	if len(obs.finished) != 1 || obs.finished[0].ID != m.ID {
		t.Errorf("Expected mission %s to be reported finished, got %v", m.ID, obs.finished)
	}
	if st.MissionID != "" {
		t.Errorf("Expected no current mission, got %s", st.MissionID)
	}

	var thrust bool
	for _, o := range sink.sent {
		if o[motor.AxisForward.Channel()] == 1600 {
			thrust = true
		}
	}
	if !thrust {
		t.Error("Expected forward thrust to be transmitted")
	}
}

func TestNavigator_TickDrainsTelemetry(t *testing.T) {
	n, _, _ := newTestNavigator(t, staticRoute{})

	n.Inbox().Post(telemetry.PositionUpdate{At: t0, Position: telemetry.Position{Heading: 9000}})
	n.Inbox().Post(telemetry.PowerUpdate{At: t0, Power: telemetry.Power{Voltage: 15800, Current: 120}})

	if h := n.Status().Heading; h != 0 {
		t.Fatalf("Expected no update before the tick, got heading %v", h)
	}

	n.Tick(t0)

	st := n.Status()
	if st.Heading != 90 {
		t.Errorf("Expected heading 90, got %v", st.Heading)
	}
	if st.Voltage != 15800 {
		t.Errorf("Expected voltage 15800, got %d", st.Voltage)
	}
}

func TestNavigator_MoveAndAbort(t *testing.T) {
	n, sink, _ := newTestNavigator(t, staticRoute{})

	c := n.Move(t0, motor.AxisYaw, 2500, 0)
	if c.PWM() != motor.PWMMax {
		t.Errorf("Expected clamped pwm %d, got %d", motor.PWMMax, c.PWM())
	}
	if c.Duration() != time.Second {
		t.Errorf("Expected default duration 1s, got %s", c.Duration())
	}

	n.Tick(t0)
	if got := sink.last()[motor.AxisYaw.Channel()]; got != motor.PWMMax {
		t.Fatalf("Expected yaw channel at %d, got %d", motor.PWMMax, got)
	}

	n.Move(t0, motor.AxisForward, 1600, 5*time.Second)
	n.Abort(t0.Add(100 * time.Millisecond))

	st := n.Status()
	if st.Pending != 0 || st.Active != nil {
		t.Errorf("Expected an empty pipeline, got %d pending, active %v", st.Pending, st.Active)
	}
	last := sink.last()
	if !last.IsNeutral() {
		t.Errorf("Expected a neutral override after abort, got %v", last)
	}
}

func TestNavigator_StartDense(t *testing.T) {
	n, _, obs := newTestNavigator(t, staticRoute{})

	rows, err := n.StartDense(t0)
	if err != nil {
		t.Fatalf("Failed to start dense sweep: %v", err)
	}
	if rows != 5 {
		t.Errorf("Expected 5 rows, got %d", rows)
	}
	if !n.Status().Traversal.MissionRunning {
		t.Error("Expected the sweep to be running")
	}
	if len(obs.missions) != 1 || obs.missions[0].Kind != mission.KindDense {
		t.Errorf("Expected a dense mission to be recorded, got %v", obs.missions)
	}
}

func TestNavigator_BatteryCritical(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatteryCriticalVoltage = 14000

	n, _, obs := newTestNavigator(t, staticRoute{waypoints: []geofence.Vertex{northOf(10)}, fence: fence}, WithConfig(cfg))

	if _, err := n.StartDense(t0); err != nil {
		t.Fatalf("Failed to start dense sweep: %v", err)
	}

	n.Inbox().Post(telemetry.PowerUpdate{At: t0, Power: telemetry.Power{Voltage: 13000}})
	n.Tick(t0)

	st := n.Status()
	if !st.BatteryCritical {
		t.Fatal("Expected the battery to be critical")
	}
	if st.Traversal.MissionRunning {
		t.Error("Expected the sweep to be aborted")
	}
	if st.Pending != 1 {
		t.Errorf("Expected the surface command to be queued, got %d pending", st.Pending)
	}
	if last := obs.missions[len(obs.missions)-1]; last.Kind != mission.KindSurface {
		t.Errorf("Expected a surface mission, got %s", last.Kind)
	}

	if err := n.StartMission(t0); !errors.Is(err, ErrBatteryCritical) {
		t.Errorf("Expected ErrBatteryCritical, got %v", err)
	}
	if _, err := n.StartDense(t0); !errors.Is(err, ErrBatteryCritical) {
		t.Errorf("Expected ErrBatteryCritical, got %v", err)
	}

	testCases := []struct {
		voltage  uint16
		critical bool
	}{
		{14100, true}, // inside the hysteresis band
		{14250, false},
		{14100, false},
		{13900, true},
	}

	now := t0
	for _, tc := range testCases {
		now = now.Add(100 * time.Millisecond)
		n.Inbox().Post(telemetry.PowerUpdate{At: now, Power: telemetry.Power{Voltage: tc.voltage}})
		n.Tick(now)

		if got := n.Status().BatteryCritical; got != tc.critical {
			t.Errorf("At %dmV: expected critical %t, got %t", tc.voltage, tc.critical, got)
		}
	}
}

func TestNavigator_SetFence(t *testing.T) {
	n, _, _ := newTestNavigator(t, staticRoute{fence: fence})

	edges, err := n.SetFence()
	if err != nil {
		t.Fatalf("Failed to set fence: %v", err)
	}
	if math.Abs(edges.Width()-111.3) > 1 || math.Abs(edges.Length()-222.6) > 1 {
		t.Errorf("Unexpected edges %s", edges)
	}
	if n.Status().Traversal.MissionRunning {
		t.Error("Expected no mission to start")
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero transit leg", func(c *Config) { c.Planner.TransitLeg = 0 }, false},
		{"surface pwm out of range", func(c *Config) { c.SurfacePWM = 2100 }, false},
		{"no channels", func(c *Config) { c.Channels = nil }, false},
		{"threshold channel not sampled", func(c *Config) { c.Planner.Channel = "9" }, false},
		{"negative resend count", func(c *Config) { c.ResendCount = -1 }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)

			err := cfg.Validate()
			if tc.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
