// Package sampling triggers environmental samples and battery draw records at
// their own cadence, once per control tick.
package sampling

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

const (
	// DefaultSampleInterval is the period between two environmental samples
	DefaultSampleInterval = 2 * time.Second

	// DefaultBatteryInterval is the battery log period used when the vehicle is not moving
	DefaultBatteryInterval = time.Second
)

// DefaultChannels are the dissolved oxygen and conductivity probes
var DefaultChannels = []Channel{
	{ID: "2", Name: "DO"},
	{ID: "3", Name: "Cond"},
}

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.logger = logger.With(slog.String("component", "sampling"))
	}
}

// WithSampleInterval sets the environmental sample period
func WithSampleInterval(d time.Duration) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.sampleInterval = d
	}
}

// WithChannels sets the probe channels read on every sample
func WithChannels(channels []Channel) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.channels = channels
	}
}

// Scheduler owns two independent periodic triggers: the environmental sample
// and the battery draw log. The battery interval adapts after every firing to
// the horizontal speed, so the draw is logged roughly once per meter travelled.
type Scheduler struct {
	sensors  SensorSource
	recorder Recorder
	channels []Channel

	sampleInterval  time.Duration
	lastSample      time.Time
	batteryInterval time.Duration
	lastBattery     time.Time

	previous map[string]float64
	logger   *slog.Logger
}

// NewScheduler creates a scheduler whose triggers start counting at start
func NewScheduler(sensors SensorSource, recorder Recorder, start time.Time, options ...func(s *Scheduler)) *Scheduler {
	s := Scheduler{
		sensors:         sensors,
		recorder:        recorder,
		channels:        DefaultChannels,
		sampleInterval:  DefaultSampleInterval,
		batteryInterval: DefaultBatteryInterval,
		lastSample:      start,
		lastBattery:     start,
		previous:        make(map[string]float64),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Tick evaluates both triggers
func (s *Scheduler) Tick(now time.Time, snap *telemetry.Snapshot) {
	if now.Sub(s.lastSample) > s.sampleInterval {
		s.lastSample = now
		s.recorder.RecordSample(s.read(now, snap))
	}

	if now.Sub(s.lastBattery) > s.batteryInterval {
		s.lastBattery = now
		s.recorder.RecordBattery(s.batteryDraw(now, snap))

		s.batteryInterval = time.Duration(snap.HorizontalSpeed() * float64(time.Second))
		if s.batteryInterval <= 0 {
			s.batteryInterval = DefaultBatteryInterval
		}
	}
}

// SampleNow takes and records an out-of-cadence sample, used when a traversal
// needs a reading to decide where to go next.
func (s *Scheduler) SampleNow(now time.Time, snap *telemetry.Snapshot) Sample {
	sample := s.read(now, snap)
	s.recorder.RecordSample(sample)
	return sample
}

// LastSample returns the time of the latest periodic sample
func (s *Scheduler) LastSample() time.Time {
	return s.lastSample
}

// BatteryInterval returns the current battery log period
func (s *Scheduler) BatteryInterval() time.Duration {
	return s.batteryInterval
}

func (s *Scheduler) read(now time.Time, snap *telemetry.Snapshot) Sample {
	sample := Sample{
		Timestamp:   now,
		Readings:    make([]Reading, 0, len(s.channels)),
		Temperature: float64(snap.Pressure[0].Temperature) / 100,
		Latitude:    snap.Position.Latitude,
		Longitude:   snap.Position.Longitude,
	}

	for _, ch := range s.channels {
		value, err := s.sensors.Reading(ch.ID)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("reading probe: %s", err.Error()), slog.String("channel", ch.Name))
			sample.Readings = append(sample.Readings, Reading{Channel: ch, Value: s.previous[ch.ID], Stale: true})
			continue
		}

		s.previous[ch.ID] = value
		sample.Readings = append(sample.Readings, Reading{Channel: ch, Value: value})
	}

	return sample
}

func (s *Scheduler) batteryDraw(now time.Time, snap *telemetry.Snapshot) BatteryDraw {
	return BatteryDraw{
		Timestamp:         now,
		MilliampsPerMeter: float64(snap.Power.Current) / 10 * s.batteryInterval.Seconds(),
		Voltage:           snap.Power.Voltage,
		Interval:          s.batteryInterval,
	}
}
