// Package nav hosts the autonomous navigation core. A Navigator owns the
// telemetry snapshot, the motor pipeline, the heading controller, the traversal
// planner and the sampling scheduler, and advances all of them from a single
// cooperative tick.
package nav

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/auv-navigation/internal/geofence"
	"github.com/roman-kulish/auv-navigation/internal/heading"
	"github.com/roman-kulish/auv-navigation/internal/mission"
	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
	"github.com/roman-kulish/auv-navigation/internal/traverse"
)

var (
	// ErrBatteryCritical is returned when a mission is requested while the
	// battery is below the critical threshold
	ErrBatteryCritical = errors.New("battery critical")

	// ErrNoWaypoints is returned when a mission is started without waypoints
	ErrNoWaypoints = errors.New("no waypoints")
)

// WaypointSource yields the mission waypoints in visiting order
type WaypointSource interface {
	Waypoints() ([]geofence.Vertex, error)
}

// FenceSource yields the vertices of the operating area
type FenceSource interface {
	Fence() ([]geofence.Vertex, error)
}

// MissionObserver is notified when a mission starts and when it ends, either
// completed or aborted
type MissionObserver interface {
	MissionStarted(m mission.Mission)
	MissionFinished(m mission.Mission)
}

// WithLogger sets the logger for the navigator and every component it owns
func WithLogger(logger *slog.Logger) func(n *Navigator) {
	return func(n *Navigator) {
		n.baseLogger = logger
		n.logger = logger.With(slog.String("component", "nav"))
	}
}

// WithConfig overrides the default configuration
func WithConfig(cfg Config) func(n *Navigator) {
	return func(n *Navigator) {
		n.cfg = cfg
	}
}

// WithMissionObserver registers an observer for mission starts
func WithMissionObserver(o MissionObserver) func(n *Navigator) {
	return func(n *Navigator) {
		n.observer = o
	}
}

// WithStartTime sets the reference time of the sampling cadence
func WithStartTime(t time.Time) func(n *Navigator) {
	return func(n *Navigator) {
		n.start = t
	}
}

// WithInbox makes the navigator drain an inbox created by the caller, so
// transports can be wired before the navigator exists
func WithInbox(in *telemetry.Inbox) func(n *Navigator) {
	return func(n *Navigator) {
		n.inbox = in
	}
}

// Navigator is not safe for concurrent use. Transport goroutines talk to it
// only through the Inbox; everything else runs on the tick goroutine.
type Navigator struct {
	cfg Config

	snapshot  *telemetry.Snapshot
	inbox     *telemetry.Inbox
	queue     *motor.Queue
	executor  *motor.Executor
	heading   *heading.Controller
	planner   *traverse.Planner
	scheduler *sampling.Scheduler

	waypoints WaypointSource
	fence     FenceSource
	observer  MissionObserver

	edges          geofence.Edges
	mission        *mission.Mission
	batteryLatched bool
	start          time.Time

	baseLogger *slog.Logger
	logger     *slog.Logger
}

// NewNavigator wires the navigation core to its collaborators
func NewNavigator(sink motor.Sink, sensors sampling.SensorSource, recorder sampling.Recorder, waypoints WaypointSource, fence FenceSource, options ...func(n *Navigator)) (*Navigator, error) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	n := Navigator{
		cfg:        DefaultConfig(),
		snapshot:   telemetry.NewSnapshot(),
		queue:      motor.NewQueue(),
		waypoints:  waypoints,
		fence:      fence,
		start:      time.Now(),
		baseLogger: discard,
		logger:     discard,
	}

	for _, option := range options {
		option(&n)
	}

	if err := n.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid navigator config: %w", err)
	}

	if n.inbox == nil {
		n.inbox = telemetry.NewInbox(n.cfg.InboxSize)
	}
	n.executor = motor.NewExecutor(n.queue, sink,
		motor.WithLogger(n.baseLogger),
		motor.WithHeartbeat(n.cfg.Heartbeat),
		motor.WithResendCount(n.cfg.ResendCount),
		motor.WithIdleInterval(n.cfg.IdleInterval),
	)
	n.heading = heading.NewController(n.queue, heading.WithLogger(n.baseLogger))
	n.scheduler = sampling.NewScheduler(sensors, recorder, n.start,
		sampling.WithLogger(n.baseLogger),
		sampling.WithSampleInterval(n.cfg.SampleInterval),
		sampling.WithChannels(n.cfg.Channels),
	)
	n.planner = traverse.NewPlanner(n.queue, n.heading, n.scheduler,
		traverse.WithLogger(n.baseLogger),
		traverse.WithConfig(n.cfg.Planner),
	)

	return &n, nil
}

// Tick advances the core to now: pending telemetry is applied, the motor
// executor runs, the battery is checked, the planner steps when the motor
// pipeline is idle and the sampling cadence is serviced.
func (n *Navigator) Tick(now time.Time) traverse.State {
	n.inbox.Drain(n.snapshot)
	n.executor.Tick(now)
	n.checkBattery(now)

	state := n.planner.Step(now, n.snapshot, n.executor.Idle())
	n.scheduler.Tick(now, n.snapshot)

	if n.mission != nil && !n.planner.Running() && (n.mission.Kind != mission.KindSurface || n.executor.Idle()) {
		n.logger.Info("mission finished", slog.String("mission", n.mission.ID), slog.Int("loops", n.planner.Traversal().LoopCount))
		n.endMission()
	}

	return state
}

// StartMission starts an underwater mission through every configured waypoint.
// The fence is validated before anything changes.
func (n *Navigator) StartMission(now time.Time) error {
	if n.batteryLatched {
		return ErrBatteryCritical
	}

	edges, err := n.loadFence()
	if err != nil {
		return err
	}

	waypoints, err := n.waypoints.Waypoints()
	if err != nil {
		return fmt.Errorf("loading waypoints: %w", err)
	}
	if len(waypoints) == 0 {
		return ErrNoWaypoints
	}

	legs := make([]traverse.Leg, len(waypoints))
	for i, wp := range waypoints {
		if err = wp.Validate(); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
		legs[i] = traverse.Leg{Target: wp, Final: i == len(waypoints)-1}
	}

	n.executor.StopAll(now)
	n.edges = edges
	if err = n.planner.StartMission(legs); err != nil {
		return fmt.Errorf("starting mission: %w", err)
	}

	n.beginMission(now, mission.KindUnderwater, mission.Params{
		Waypoints:   len(waypoints),
		FenceWidth:  edges.Width(),
		FenceLength: edges.Length(),
		BaseHeading: n.snapshot.HeadingDegrees(),
	})
	return nil
}

// StartDense runs a standalone coverage sweep at the current heading and
// returns the number of rows used.
func (n *Navigator) StartDense(now time.Time) (int, error) {
	if n.batteryLatched {
		return 0, ErrBatteryCritical
	}

	n.executor.StopAll(now)

	base := n.snapshot.HeadingDegrees()
	rows := n.planner.StartSweep(traverse.SweepParams{
		Channel:               n.cfg.Planner.Channel,
		ForwardDistanceToEdge: n.cfg.DenseEdge,
		LoopCount:             n.cfg.DenseLoops,
		BaseHeading:           base,
		ForwardLegs:           n.cfg.Planner.SweepForwardLegs,
		SidewaysStep:          n.cfg.Planner.SweepSideways,
		Current:               n.cfg.Planner.Current,
	})

	tr := n.planner.Traversal()
	n.beginMission(now, mission.KindDense, mission.Params{
		SweepRows:    rows,
		SweepSpacing: tr.CurrentSidewaysStep,
		BaseHeading:  base,
	})
	return rows, nil
}

// Surface abandons any activity and drives the vehicle up
func (n *Navigator) Surface(now time.Time) {
	n.Abort(now)
	n.queue.Enqueue(motor.NewCommand(motor.AxisVertical, n.cfg.SurfacePWM, n.cfg.SurfaceDuration))

	n.beginMission(now, mission.KindSurface, mission.Params{})
}

// SetFence derives and keeps the fence edges without starting a mission
func (n *Navigator) SetFence() (geofence.Edges, error) {
	edges, err := n.loadFence()
	if err != nil {
		return geofence.Edges{}, err
	}

	n.edges = edges
	n.logger.Info("geofence set", slog.Float64("width", edges.Width()), slog.Float64("length", edges.Length()))
	return edges, nil
}

// Move enqueues a single manual command. A zero duration uses the configured
// default; StopAll cancels everything immediately.
func (n *Navigator) Move(now time.Time, axis motor.Axis, pwm int, d time.Duration) motor.Command {
	if axis == motor.AxisStopAll {
		n.Abort(now)
		return motor.Stop(0)
	}
	if d <= 0 {
		d = n.cfg.MoveDuration
	}

	c := motor.NewCommand(axis, pwm, d)
	n.queue.Enqueue(c)

	n.logger.Debug("manual command", slog.String("command", c.String()))
	return c
}

// Abort clears the queue, stops every thruster and clears the traversal state
func (n *Navigator) Abort(now time.Time) {
	n.planner.Abort()
	n.executor.StopAll(now)
	n.endMission()
}

// Inbox returns the queue transport goroutines post telemetry into
func (n *Navigator) Inbox() *telemetry.Inbox {
	return n.inbox
}

// Snapshot returns the live telemetry snapshot. It must only be read on the
// tick goroutine.
func (n *Navigator) Snapshot() *telemetry.Snapshot {
	return n.snapshot
}

// Status returns a point-in-time summary for operators
func (n *Navigator) Status() Status {
	s := Status{
		State:           n.planner.State(),
		Traversal:       n.planner.Traversal(),
		Pending:         n.queue.Len(),
		Override:        n.executor.Override(),
		Heading:         n.snapshot.HeadingDegrees(),
		Voltage:         n.snapshot.Power.Voltage,
		BatteryCritical: n.batteryLatched,
		Edges:           n.edges,
		Dropped:         n.inbox.Dropped(),
		LastSample:      n.scheduler.LastSample(),
	}
	if c, ok := n.executor.Active(); ok {
		s.Active = &c
	}
	if n.mission != nil {
		s.MissionID = n.mission.ID
	}
	return s
}

func (n *Navigator) loadFence() (geofence.Edges, error) {
	vertices, err := n.fence.Fence()
	if err != nil {
		return geofence.Edges{}, fmt.Errorf("loading fence: %w", err)
	}

	edges, err := geofence.DeriveEdges(vertices)
	if err != nil {
		return geofence.Edges{}, fmt.Errorf("deriving fence edges: %w", err)
	}
	return edges, nil
}

func (n *Navigator) beginMission(now time.Time, kind mission.Kind, params mission.Params) {
	n.endMission()

	m := mission.Mission{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartTime: now,
	}

	if p, err := json.Marshal(params); err == nil {
		config := string(p)
		m.Config = &config
	}

	n.mission = &m
	n.logger.Info("mission started", slog.String("mission", m.ID), slog.String("kind", string(kind)))

	if n.observer != nil {
		n.observer.MissionStarted(m)
	}
}

func (n *Navigator) endMission() {
	if n.mission == nil {
		return
	}

	m := *n.mission
	n.mission = nil

	if n.observer != nil {
		n.observer.MissionFinished(m)
	}
}

func (n *Navigator) checkBattery(now time.Time) {
	threshold := n.cfg.BatteryCriticalVoltage
	voltage := n.snapshot.Power.Voltage
	if threshold == 0 || voltage == 0 {
		return
	}

	if n.batteryLatched {
		if uint32(voltage) >= uint32(threshold)+uint32(n.cfg.BatteryHysteresis) {
			n.batteryLatched = false
			n.logger.Info("battery recovered", slog.Int("voltage", int(voltage)))
		}
		return
	}

	if voltage >= threshold {
		return
	}

	n.batteryLatched = true
	n.logger.Error(ErrBatteryCritical.Error(), slog.Int("voltage", int(voltage)), slog.Int("threshold", int(threshold)))
	n.Surface(now)
}
