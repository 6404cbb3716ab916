// Package traverse plans and executes coverage sweeps and point-to-point
// transits as resumable state machines advanced once per control tick.
package traverse

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/geofence"
	"github.com/roman-kulish/auv-navigation/internal/heading"
	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

const (
	StateIdle State = iota
	StateOrienting
	StateTraversing
	StateSampling
)

// State is the activity the planner is waiting on
type State int

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOrienting:
		return "ORIENTING"
	case StateTraversing:
		return "TRAVERSING"
	case StateSampling:
		return "SAMPLING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Enqueuer accepts timed motor commands
type Enqueuer interface {
	Enqueue(c motor.Command)
}

// Sampler takes an environmental sample on demand
type Sampler interface {
	SampleNow(now time.Time, snap *telemetry.Snapshot) sampling.Sample
}

// Config holds the planner tunables
type Config struct {
	TraversePWM      int     // Forward thrust used on every leg
	TransitLeg       float64 // Seconds of thrust between two transit samples
	Channel          string  // Probe channel compared against Threshold
	Threshold        float64 // Reading that triggers a local coverage sweep
	SweepForwardLegs int     // Nominal sweep rows
	SweepSideways    float64 // Nominal sweep row spacing
	Current          float64 // Estimated lateral current
}

// DefaultConfig returns the tunables used in field trials
func DefaultConfig() Config {
	return Config{
		TraversePWM:      1600,
		TransitLeg:       3,
		Channel:          "2",
		Threshold:        0.7,
		SweepForwardLegs: 5,
		SweepSideways:    2,
	}
}

// Leg is one point-to-point segment of a mission
type Leg struct {
	Target geofence.Vertex
	Final  bool // The last leg of the mission completes a loop
}

// TraversalState is owned by the planner. It is reset when a mission starts and
// cleared when it completes or is aborted; LoopCount survives the clear so it
// can be reported.
type TraversalState struct {
	LoopCount           int
	CurrentForwardLeg   int
	CurrentSidewaysStep float64
	MissionRunning      bool
}

// WithLogger sets the logger for the planner
func WithLogger(logger *slog.Logger) func(p *Planner) {
	return func(p *Planner) {
		p.logger = logger.With(slog.String("component", "traverse"))
	}
}

// WithConfig overrides the default tunables
func WithConfig(cfg Config) func(p *Planner) {
	return func(p *Planner) {
		p.cfg = cfg
	}
}

type sweepRun struct {
	plan   Plan
	nested bool
}

type transit struct {
	leg      Leg
	bearing  float64
	distance float64

	started bool
	endTime time.Time
	sample  bool // next idle tick samples instead of traversing

	suspendedAt time.Time
	remaining   time.Duration
}

// Planner drives missions one step per idle tick. It never blocks: every step
// enqueues motor commands and returns, and the next step runs only once the
// motor pipeline has drained.
type Planner struct {
	cfg     Config
	queue   Enqueuer
	heading *heading.Controller
	sampler Sampler

	state     State
	traversal TraversalState

	ops     []Op
	sweep   *sweepRun
	transit *transit
	legs    []Leg

	logger *slog.Logger
}

// NewPlanner creates an idle planner
func NewPlanner(q Enqueuer, hc *heading.Controller, sampler Sampler, options ...func(p *Planner)) *Planner {
	p := Planner{
		cfg:     DefaultConfig(),
		queue:   q,
		heading: hc,
		sampler: sampler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// StartMission resets the traversal state and queues the mission legs
func (p *Planner) StartMission(legs []Leg) error {
	if len(legs) == 0 {
		return fmt.Errorf("mission has no legs")
	}

	p.reset()
	p.legs = append([]Leg(nil), legs...)
	p.traversal.MissionRunning = true

	p.logger.Info("mission started", slog.Int("legs", len(legs)))
	return nil
}

// StartSweep resets the traversal state and runs a standalone coverage sweep.
// It returns the number of rows actually used.
func (p *Planner) StartSweep(params SweepParams) int {
	p.reset()
	p.traversal.MissionRunning = true
	p.beginSweep(params, false)

	return p.sweep.plan.ForwardLegs
}

// Abort abandons the activity in progress. The caller is responsible for
// stopping the thrusters.
func (p *Planner) Abort() {
	if p.traversal.MissionRunning {
		p.logger.Warn("mission aborted", slog.String("state", p.state.String()))
	}

	p.heading.Cancel()
	p.clear()
}

// Step advances the planner by one increment. motorIdle reports whether the
// command queue is drained and no command is active.
func (p *Planner) Step(now time.Time, snap *telemetry.Snapshot, motorIdle bool) State {
	if !p.traversal.MissionRunning {
		p.state = StateIdle
		return p.state
	}
	if !motorIdle {
		return p.state
	}

	if p.state == StateOrienting {
		if !p.heading.Step(snap) {
			return p.state
		}
		p.state = StateIdle
	}

	switch {
	case len(p.ops) > 0:
		p.runOp(p.ops[0], snap)
		p.ops = p.ops[1:]

	case p.sweep != nil:
		p.finishSweep(now)

	case p.transit != nil:
		p.stepTransit(now, snap)

	case len(p.legs) > 0:
		p.beginLeg(p.legs[0], snap)
		p.legs = p.legs[1:]

	default:
		p.logger.Info("mission complete", slog.Int("loops", p.traversal.LoopCount))
		p.clear()
	}

	return p.state
}

// State returns the activity the planner is waiting on
func (p *Planner) State() State {
	return p.state
}

// Traversal returns a copy of the traversal state
func (p *Planner) Traversal() TraversalState {
	return p.traversal
}

// Running reports whether a mission or sweep is in progress
func (p *Planner) Running() bool {
	return p.traversal.MissionRunning
}

func (p *Planner) runOp(op Op, snap *telemetry.Snapshot) {
	switch op.Kind {
	case OpOrient:
		p.heading.Orient(op.Heading, snap)
		p.state = StateOrienting
		if p.heading.Step(snap) {
			p.state = StateIdle
		}

	case OpTraverse:
		p.thrust(op.Seconds)
	}
}

func (p *Planner) thrust(seconds float64) {
	p.queue.Enqueue(motor.NewCommand(motor.AxisForward, p.cfg.TraversePWM, seconds2duration(seconds)))
	p.state = StateTraversing
}

func (p *Planner) beginSweep(params SweepParams, nested bool) {
	plan := PlanSweep(params)

	p.sweep = &sweepRun{plan: plan, nested: nested}
	p.ops = append(plan.Ops, p.ops...)
	p.traversal.CurrentForwardLeg = plan.ForwardLegs
	p.traversal.CurrentSidewaysStep = plan.SidewaysStep

	p.logger.Info("coverage sweep",
		slog.String("channel", params.Channel),
		slog.Int("rows", plan.ForwardLegs),
		slog.Float64("spacing", plan.SidewaysStep),
		slog.Float64("heading", params.BaseHeading),
		slog.Float64("edge", params.ForwardDistanceToEdge),
		slog.Float64("current", params.Current),
		slog.Bool("nested", nested))
}

func (p *Planner) finishSweep(now time.Time) {
	run := p.sweep
	p.sweep = nil

	if !run.nested || p.transit == nil {
		p.logger.Info("coverage sweep complete", slog.Int("rows", run.plan.ForwardLegs))
		p.clear()
		return
	}

	t := p.transit
	covered := seconds2duration(run.plan.ForwardDistance())
	t.endTime = now.Add(max(t.remaining-covered, 0))
	t.sample = false

	p.logger.Info("transit resumed",
		slog.Duration("remaining", t.endTime.Sub(now)),
		slog.Duration("suspended", now.Sub(t.suspendedAt)))
}

func (p *Planner) beginLeg(leg Leg, snap *telemetry.Snapshot) {
	here := geofence.Vertex{Lat: snap.Position.Latitude, Lon: snap.Position.Longitude}

	t := &transit{
		leg:      leg,
		bearing:  geofence.Bearing(here, leg.Target),
		distance: geofence.Distance(here, leg.Target),
	}
	p.transit = t

	p.logger.Info("transit leg",
		slog.Float64("bearing", t.bearing),
		slog.Float64("distance", t.distance),
		slog.Bool("final", leg.Final))

	p.ops = append(p.ops, Op{Kind: OpOrient, Heading: t.bearing})
}

func (p *Planner) stepTransit(now time.Time, snap *telemetry.Snapshot) {
	t := p.transit

	if !t.started {
		t.started = true
		t.endTime = now.Add(seconds2duration(t.distance + 1))
	}

	if !now.Before(t.endTime) {
		p.queue.Enqueue(motor.Stop(time.Second))
		p.state = StateTraversing
		p.transit = nil

		if t.leg.Final {
			p.traversal.LoopCount++
		}
		p.logger.Info("transit leg complete", slog.Int("loops", p.traversal.LoopCount))
		return
	}

	if !t.sample {
		t.sample = true
		p.thrust(p.cfg.TransitLeg)
		return
	}

	t.sample = false
	p.state = StateSampling

	sample := p.sampler.SampleNow(now, snap)
	value, ok := sample.Value(p.cfg.Channel)
	if !ok || value < p.cfg.Threshold {
		return
	}

	t.suspendedAt = now
	t.remaining = t.endTime.Sub(now)

	p.logger.Info("pollutant threshold crossed",
		slog.String("channel", p.cfg.Channel),
		slog.Float64("value", value),
		slog.Float64("threshold", p.cfg.Threshold))

	p.beginSweep(SweepParams{
		Channel:               p.cfg.Channel,
		ForwardDistanceToEdge: t.remaining.Seconds(),
		LoopCount:             p.traversal.LoopCount,
		BaseHeading:           t.bearing,
		ForwardLegs:           p.cfg.SweepForwardLegs,
		SidewaysStep:          p.cfg.SweepSideways,
		Current:               p.cfg.Current,
	}, true)
}

func (p *Planner) reset() {
	p.heading.Cancel()
	p.clear()
	p.traversal = TraversalState{}
}

func (p *Planner) clear() {
	p.ops = nil
	p.sweep = nil
	p.transit = nil
	p.legs = nil
	p.state = StateIdle

	p.traversal.CurrentForwardLeg = 0
	p.traversal.CurrentSidewaysStep = 0
	p.traversal.MissionRunning = false
}

func seconds2duration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
