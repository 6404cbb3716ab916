package traverse

import (
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/geofence"
	"github.com/roman-kulish/auv-navigation/internal/heading"
	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

// vehicle runs every enqueued command back to back: a yaw pulse turns the
// heading by 10 degrees and the clock advances by the command duration.
type vehicle struct {
	clock   time.Time
	heading float64
	snap    *telemetry.Snapshot
	cmds    []motor.Command
}

func newVehicle() *vehicle {
	v := &vehicle{
		clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		snap:  telemetry.NewSnapshot(),
	}
	v.setHeading(0)
	return v
}

func (v *vehicle) setHeading(deg float64) {
	v.heading = heading.Wrap360(deg)
	pos := v.snap.Position
	pos.Heading = uint16(math.Round(v.heading * 100))
	v.snap.UpdatePosition(pos, v.clock)
}

func (v *vehicle) Enqueue(c motor.Command) {
	v.cmds = append(v.cmds, c)
	v.clock = v.clock.Add(c.Duration())

	if c.Axis() == motor.AxisYaw {
		if c.PWM() > motor.PWMNeutral {
			v.setHeading(v.heading + 10)
		} else {
			v.setHeading(v.heading - 10)
		}
	}
}

func (v *vehicle) count(axis motor.Axis, d time.Duration) int {
	var n int
	for _, c := range v.cmds {
		if c.Axis() == axis && c.Duration() == d {
			n++
		}
	}
	return n
}

type fakeSampler struct {
	values []float64
	calls  int
}

func (f *fakeSampler) SampleNow(now time.Time, _ *telemetry.Snapshot) sampling.Sample {
	var value float64
	if f.calls < len(f.values) {
		value = f.values[f.calls]
	}
	f.calls++

	return sampling.Sample{
		Timestamp: now,
		Readings:  []sampling.Reading{{Channel: sampling.Channel{ID: "2", Name: "DO"}, Value: value}},
	}
}

func run(t *testing.T, p *Planner, v *vehicle, observe func()) {
	t.Helper()

	for i := 0; i < 10000; i++ {
		if !p.Running() {
			return
		}
		p.Step(v.clock, v.snap, true)
		if observe != nil {
			observe()
		}
	}
	t.Fatal("Planner did not finish")
}

func TestPlanSweep_Geometry(t *testing.T) {
	plan := PlanSweep(SweepParams{
		ForwardDistanceToEdge: 100,
		LoopCount:             5,
		BaseHeading:           0,
		ForwardLegs:           5,
		SidewaysStep:          2,
	})

	if plan.ForwardLegs != 5 {
		t.Fatalf("Expected 5 rows, got %d", plan.ForwardLegs)
	}
	if plan.SidewaysStep != 2 {
		t.Fatalf("Expected spacing 2, got %v", plan.SidewaysStep)
	}

	var forward int
	var rows []float64
	for i, op := range plan.Ops {
		if op.Kind == OpTraverse && op.Seconds == ForwardLegSeconds {
			forward++
		}
		if op.Kind == OpOrient && op.Heading != 0 {
			rows = append(rows, op.Heading)
			if next := plan.Ops[i+1]; next.Kind != OpTraverse {
				t.Fatalf("Row turn %d is not followed by a traverse: %s", i, next)
			}
		}
	}

	if forward != 6 {
		t.Errorf("Expected 6 forward legs, got %d", forward)
	}
	if len(rows) != 7 {
		t.Fatalf("Expected 7 sideways steps, got %d", len(rows))
	}
	for i, h := range rows {
		want := 90.0
		if i%2 == 1 {
			want = 270
		}
		if h != want {
			t.Errorf("Sideways step %d: expected heading %v, got %v", i, want, h)
		}
	}

	last := plan.Ops[len(plan.Ops)-1]
	if last.Kind != OpOrient || last.Heading != 0 {
		t.Errorf("Expected the sweep to end facing the base heading, got %s", last)
	}
	if plan.ForwardDistance() != 18 {
		t.Errorf("Expected forward distance 18, got %v", plan.ForwardDistance())
	}
}

func TestPlanSweep_Shrink(t *testing.T) {
	testCases := []struct {
		name     string
		edge     float64
		loop     int
		legs     int
		sideways float64
	}{
		{"edge wins over early loop", 3, 0, 1, 2},
		{"edge too close for any row", 1.5, 3, 0, 2},
		{"early loop halves spacing", 50, 1, 5, 1},
		{"later loop keeps spacing", 50, 2, 5, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan := PlanSweep(SweepParams{
				ForwardDistanceToEdge: tc.edge,
				LoopCount:             tc.loop,
				BaseHeading:           45,
				ForwardLegs:           5,
				SidewaysStep:          2,
			})

			if plan.ForwardLegs != tc.legs {
				t.Errorf("Expected %d rows, got %d", tc.legs, plan.ForwardLegs)
			}
			if plan.SidewaysStep != tc.sideways {
				t.Errorf("Expected spacing %v, got %v", tc.sideways, plan.SidewaysStep)
			}
		})
	}
}

func TestPlanner_StandaloneSweep(t *testing.T) {
	v := newVehicle()
	hc := heading.NewController(v)
	p := NewPlanner(v, hc, &fakeSampler{})

	if rows := p.StartSweep(SweepParams{ForwardDistanceToEdge: 10, ForwardLegs: 5, SidewaysStep: 2}); rows != 5 {
		t.Fatalf("Expected 5 rows, got %d", rows)
	}

	run(t, p, v, nil)

	if n := v.count(motor.AxisForward, 3*time.Second); n != 6 {
		t.Errorf("Expected 6 forward legs, got %d", n)
	}
	if n := v.count(motor.AxisForward, time.Second); n != 6 {
		t.Errorf("Expected 6 full sideways steps, got %d", n)
	}
	if n := v.count(motor.AxisForward, 500*time.Millisecond); n != 1 {
		t.Errorf("Expected 1 half sideways step, got %d", n)
	}
	if v.heading != 0 {
		t.Errorf("Expected to end on the base heading, got %v", v.heading)
	}
	if p.State() != StateIdle {
		t.Errorf("Expected idle planner, got %s", p.State())
	}
}

func TestPlanner_WaitsForMotor(t *testing.T) {
	v := newVehicle()
	p := NewPlanner(v, heading.NewController(v), &fakeSampler{})
	p.StartSweep(SweepParams{ForwardDistanceToEdge: 10, ForwardLegs: 1, SidewaysStep: 2})

	p.Step(v.clock, v.snap, true)
	issued := len(v.cmds)
	if issued == 0 {
		t.Fatal("Expected the first step to enqueue a command")
	}

	for i := 0; i < 5; i++ {
		p.Step(v.clock, v.snap, false)
	}
	if len(v.cmds) != issued {
		t.Errorf("Expected no commands while the motor is busy, got %d more", len(v.cmds)-issued)
	}
}

func northOf(meters float64) geofence.Vertex {
	return geofence.Vertex{Lat: meters / 6378100 * 180 / math.Pi}
}

func TestPlanner_Transit(t *testing.T) {
	v := newVehicle()
	sampler := &fakeSampler{}
	p := NewPlanner(v, heading.NewController(v), sampler)

	if err := p.StartMission([]Leg{{Target: northOf(30), Final: true}}); err != nil {
		t.Fatalf("Failed to start mission: %v", err)
	}

	run(t, p, v, nil)

	if n := v.count(motor.AxisForward, 3*time.Second); n != 11 {
		t.Errorf("Expected 11 transit legs, got %d", n)
	}
	if sampler.calls != 10 {
		t.Errorf("Expected 10 samples, got %d", sampler.calls)
	}
	if last := v.cmds[len(v.cmds)-1]; last.Axis() != motor.AxisStopAll {
		t.Errorf("Expected the transit to end with a stop, got %s", last)
	}
	if got := p.Traversal().LoopCount; got != 1 {
		t.Errorf("Expected loop count 1, got %d", got)
	}
}

func TestPlanner_TransitReplansAroundSweep(t *testing.T) {
	v := newVehicle()
	sampler := &fakeSampler{values: []float64{0.9}}
	p := NewPlanner(v, heading.NewController(v), sampler)

	if err := p.StartMission([]Leg{{Target: northOf(30), Final: true}}); err != nil {
		t.Fatalf("Failed to start mission: %v", err)
	}

	var sweepRows int
	run(t, p, v, func() {
		sweepRows = max(sweepRows, p.Traversal().CurrentForwardLeg)
	})

	if sweepRows != 5 {
		t.Errorf("Expected a 5 row sweep, got %d", sweepRows)
	}

	// One transit leg before the sweep, six sweep rows, then 28s remaining
	// less the 18s the sweep advanced.
	if n := v.count(motor.AxisForward, 3*time.Second); n != 1+6+4 {
		t.Errorf("Expected 11 forward legs, got %d", n)
	}
	if sampler.calls != 4 {
		t.Errorf("Expected 4 samples, got %d", sampler.calls)
	}
	if got := p.Traversal().LoopCount; got != 1 {
		t.Errorf("Expected loop count 1, got %d", got)
	}
	if p.Running() {
		t.Error("Expected the mission to be complete")
	}
}

func TestPlanner_Abort(t *testing.T) {
	v := newVehicle()
	p := NewPlanner(v, heading.NewController(v), &fakeSampler{})

	if err := p.StartMission([]Leg{{Target: northOf(100)}}); err != nil {
		t.Fatalf("Failed to start mission: %v", err)
	}
	p.Step(v.clock, v.snap, true)
	p.Step(v.clock, v.snap, true)

	p.Abort()
	issued := len(v.cmds)

	if p.Running() {
		t.Fatal("Expected no mission after abort")
	}
	if st := p.Step(v.clock, v.snap, true); st != StateIdle {
		t.Errorf("Expected idle, got %s", st)
	}
	if len(v.cmds) != issued {
		t.Error("Expected no commands after abort")
	}
}

func TestPlanner_StartMissionRejectsEmpty(t *testing.T) {
	v := newVehicle()
	p := NewPlanner(v, heading.NewController(v), &fakeSampler{})

	if err := p.StartMission(nil); err == nil {
		t.Fatal("Expected an error for an empty mission")
	}
}
