package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/link/canbus"
	"github.com/roman-kulish/auv-navigation/internal/link/mavlink"
	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/nav"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/sensor"
	"github.com/roman-kulish/auv-navigation/internal/storage"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

// Run wires the navigation core to its transports and drives it at the
// configured tick rate until ctx is cancelled. Console commands are read from
// console, one per line, and answered on out.
func Run(ctx context.Context, config *Config, logger *slog.Logger, console io.Reader, out io.Writer) error {
	store, textLog, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()
	defer textLog.Close()

	recorder := NewRecorder(store, textLog, logger, WithQueueSize(config.Storage.QueueSize))
	defer recorder.Close()

	navConfig := config.Mission.NavConfig(config.Sensor.Channels)
	inbox := telemetry.NewInbox(navConfig.InboxSize)

	link, err := mavlink.Dial(config.MAVLink, inbox, mavlink.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to connect to the flight controller: %w", err)
	}
	defer link.Close()

	var sink motor.Sink = link
	if config.CAN.Enabled {
		canSink, err := canbus.Dial(ctx, config.CAN.Config, canbus.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to open can interface: %w", err)
		}
		defer canSink.Close()

		sink = canSink
	}

	var (
		sensors       sampling.SensorSource = noSensors{}
		sensorStopped <-chan error
	)
	if config.Sensor.Enabled {
		poller, err := sensor.Open(config.Sensor.Device, config.Sensor.BaudRate, config.Sensor.ChannelIDs(),
			sensor.WithLogger(logger),
			sensor.WithInterval(time.Duration(config.Sensor.Interval)),
			sensor.WithMaxAge(time.Duration(config.Sensor.MaxAge)),
		)
		if err != nil {
			return fmt.Errorf("failed to open sensor board: %w", err)
		}
		defer poller.Close()

		if sensorStopped, err = poller.BeginPolling(ctx); err != nil {
			return fmt.Errorf("failed to start sensor polling: %w", err)
		}
		sensors = poller
	}

	route := config.Mission.Route()
	navigator, err := nav.NewNavigator(sink, sensors, recorder, route, route,
		nav.WithLogger(logger),
		nav.WithConfig(navConfig),
		nav.WithMissionObserver(recorder),
		nav.WithInbox(inbox),
	)
	if err != nil {
		return fmt.Errorf("failed to create navigator: %w", err)
	}

	linkStopped := make(chan error, 1)
	go func() {
		linkStopped <- link.Run(ctx)
	}()

	lines := readLines(ctx, console)

	ticker := time.NewTicker(time.Duration(config.Settings.TickRate))
	defer ticker.Stop()

	logger.Info("navigation loop started", slog.String("tickRate", config.Settings.TickRate.String()))

	for {
		select {
		case <-ctx.Done():
			navigator.Abort(time.Now())
			logger.Info("navigation loop stopped", slog.Uint64("droppedRecords", recorder.Dropped()))
			return nil

		case err := <-linkStopped:
			navigator.Abort(time.Now())
			if err != nil {
				return fmt.Errorf("mavlink link stopped: %w", err)
			}
			return nil

		case err, ok := <-sensorStopped:
			if ok && err != nil {
				logger.Error(fmt.Sprintf("sensor polling stopped: %s", err.Error()))
			}
			sensorStopped = nil // readings go stale and samples are marked accordingly

		case line := <-lines:
			reply, err := Execute(navigator, line, time.Now())
			if err != nil {
				reply = err.Error()
			}
			if reply != "" {
				fmt.Fprintln(out, reply)
			}

		case now := <-ticker.C:
			navigator.Tick(now)
		}
	}
}

// readLines forwards console lines until ctx is cancelled or the reader ends
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, *storage.TextLog, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = defaultDataDirectory
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating storage directory '%s': %w", dir, err)
	}

	textLog, err := storage.OpenTextLog(filepath.Join(dir, config.SamplesLog), filepath.Join(dir, config.BatteryLog))
	if err != nil {
		return nil, nil, err
	}

	return storage.NewSqliteStore(filepath.Join(dir, config.Database)), textLog, nil
}

// noSensors stands in for a disabled probe board
type noSensors struct{}

func (noSensors) Reading(channel string) (float64, error) {
	return 0, fmt.Errorf("%w: sensor board disabled", sampling.ErrSensorUnavailable)
}
