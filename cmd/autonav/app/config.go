package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/auv-navigation/internal/geofence"
	"github.com/roman-kulish/auv-navigation/internal/link/canbus"
	"github.com/roman-kulish/auv-navigation/internal/link/mavlink"
	"github.com/roman-kulish/auv-navigation/internal/nav"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/sensor"
)

const (
	defaultTickRate      = 100 * time.Millisecond
	defaultDataDirectory = "data"
	defaultSamplesLog    = "samples.log"
	defaultBatteryLog    = "battery.log"
	defaultDatabase      = "missions.sqlite"
	defaultSensorBaud    = 9600
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	MAVLink  mavlink.Config `yaml:"mavlink"`
	CAN      CANConfig      `yaml:"can"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Storage  StorageConfig  `yaml:"storage"`
	Mission  MissionConfig  `yaml:"mission"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string   `yaml:"logLevel"`
	TickRate Duration `yaml:"tickRate"`
}

// Level parses the configured log level
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': %w", s.LogLevel, err)
	}
	return level, nil
}

// CANConfig routes RC overrides to a SocketCAN thruster controller instead of
// the flight controller
type CANConfig struct {
	Enabled       bool `yaml:"enabled"`
	canbus.Config `yaml:",inline"`
}

// SensorConfig represents the serial probe board
type SensorConfig struct {
	Enabled  bool               `yaml:"enabled"`
	Device   string             `yaml:"device"`
	BaudRate int                `yaml:"baudRate"`
	Interval Duration           `yaml:"interval"`
	MaxAge   Duration           `yaml:"maxAge"`
	Channels []sampling.Channel `yaml:"channels"`
}

// ChannelIDs returns the board addresses to poll
func (c SensorConfig) ChannelIDs() []string {
	ids := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		ids[i] = ch.ID
	}
	return ids
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	Database      string `yaml:"database"`
	SamplesLog    string `yaml:"samplesLog"`
	BatteryLog    string `yaml:"batteryLog"`
	QueueSize     int    `yaml:"queueSize"`
}

// MissionConfig holds the route, the operating area and the navigator tunables
type MissionConfig struct {
	Waypoints []geofence.Vertex `yaml:"waypoints"`
	Fence     []geofence.Vertex `yaml:"fence"`

	TraversePWM      int      `yaml:"traversePWM"`
	TransitLeg       float64  `yaml:"transitLeg"`       // Seconds of thrust between two samples
	ThresholdChannel string   `yaml:"thresholdChannel"` // Probe channel that triggers a sweep
	Threshold        float64  `yaml:"threshold"`
	SweepForwardLegs int      `yaml:"sweepForwardLegs"`
	SweepSideways    float64  `yaml:"sweepSideways"`
	DenseEdge        float64  `yaml:"denseEdge"`
	DenseLoops       int      `yaml:"denseLoops"`
	MoveDuration     Duration `yaml:"moveDuration"`
	SurfaceDuration  Duration `yaml:"surfaceDuration"`
	SampleInterval   Duration `yaml:"sampleInterval"`

	BatteryCriticalVoltage uint16 `yaml:"batteryCriticalVoltage"` // Millivolts, 0 disables
	BatteryHysteresis      uint16 `yaml:"batteryHysteresis"`
}

// NavConfig overlays the mission settings onto the navigator defaults
func (m MissionConfig) NavConfig(channels []sampling.Channel) nav.Config {
	cfg := nav.DefaultConfig()

	if m.TraversePWM != 0 {
		cfg.Planner.TraversePWM = m.TraversePWM
	}
	if m.TransitLeg != 0 {
		cfg.Planner.TransitLeg = m.TransitLeg
	}
	if m.ThresholdChannel != "" {
		cfg.Planner.Channel = m.ThresholdChannel
	}
	if m.Threshold != 0 {
		cfg.Planner.Threshold = m.Threshold
	}
	if m.SweepForwardLegs != 0 {
		cfg.Planner.SweepForwardLegs = m.SweepForwardLegs
	}
	if m.SweepSideways != 0 {
		cfg.Planner.SweepSideways = m.SweepSideways
	}
	if m.DenseEdge != 0 {
		cfg.DenseEdge = m.DenseEdge
	}
	if m.DenseLoops != 0 {
		cfg.DenseLoops = m.DenseLoops
	}
	if m.MoveDuration != 0 {
		cfg.MoveDuration = time.Duration(m.MoveDuration)
	}
	if m.SurfaceDuration != 0 {
		cfg.SurfaceDuration = time.Duration(m.SurfaceDuration)
	}
	if m.SampleInterval != 0 {
		cfg.SampleInterval = time.Duration(m.SampleInterval)
	}
	if m.BatteryHysteresis != 0 {
		cfg.BatteryHysteresis = m.BatteryHysteresis
	}
	if len(channels) > 0 {
		cfg.Channels = channels
	}
	cfg.BatteryCriticalVoltage = m.BatteryCriticalVoltage

	return cfg
}

// Route returns the static waypoint and fence source of the mission
func (m MissionConfig) Route() *Route {
	return &Route{waypoints: m.Waypoints, fence: m.Fence}
}

// Route implements nav.WaypointSource and nav.FenceSource over the lists
// read from the configuration file
type Route struct {
	waypoints []geofence.Vertex
	fence     []geofence.Vertex
}

var (
	_ nav.WaypointSource = (*Route)(nil)
	_ nav.FenceSource    = (*Route)(nil)
)

func (r *Route) Waypoints() ([]geofence.Vertex, error) {
	return r.waypoints, nil
}

func (r *Route) Fence() ([]geofence.Vertex, error) {
	return r.fence, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Settings.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive, got %s", c.Settings.TickRate))
	}

	if len(c.MAVLink.Endpoints) == 0 {
		errs = append(errs, errors.New("at least one mavlink endpoint is required"))
	}
	for _, e := range c.MAVLink.Endpoints {
		if _, err := mavlink.ParseEndpoint(e); err != nil {
			errs = append(errs, err)
		}
	}

	if c.CAN.Enabled && c.CAN.Interface == "" {
		errs = append(errs, errors.New("can interface is required when can is enabled"))
	}

	if c.Sensor.Enabled {
		if c.Sensor.Device == "" {
			errs = append(errs, errors.New("sensor device is required when the sensor is enabled"))
		}
		if c.Sensor.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("sensor baud rate must be positive, got %d", c.Sensor.BaudRate))
		}
	}
	for _, d := range []Duration{c.Sensor.Interval, c.Sensor.MaxAge, c.Mission.MoveDuration, c.Mission.SurfaceDuration, c.Mission.SampleInterval} {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	for i, v := range c.Mission.Waypoints {
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("waypoint %d: %w", i, err))
		}
	}

	if err := c.Mission.NavConfig(c.Sensor.Channels).Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LoadConfig reads the configuration file, applies defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Config{
		Settings: Settings{
			LogLevel: "info",
			TickRate: Duration(defaultTickRate),
		},
		Sensor: SensorConfig{
			BaudRate: defaultSensorBaud,
			Interval: Duration(sensor.DefaultInterval),
			MaxAge:   Duration(sensor.DefaultMaxAge),
			Channels: sampling.DefaultChannels,
		},
		Storage: StorageConfig{
			DataDirectory: defaultDataDirectory,
			Database:      defaultDatabase,
			SamplesLog:    defaultSamplesLog,
			BatteryLog:    defaultBatteryLog,
			QueueSize:     defaultQueueSize,
		},
	}

	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
