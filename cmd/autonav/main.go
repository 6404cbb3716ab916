package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/auv-navigation/cmd/autonav/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	var checkOnly bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.BoolVar(&checkOnly, "check", false, "Validate the configuration and exit")
	flag.Parse()

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	level, _ := config.Settings.Level() // validated by LoadConfig
	logLevel.Set(level)

	if checkOnly {
		logger.Info("configuration is valid",
			slog.String("path", configPath),
			slog.Any("endpoints", config.MAVLink.Endpoints),
			slog.Int("waypoints", len(config.Mission.Waypoints)),
			slog.Bool("can", config.CAN.Enabled),
			slog.Bool("sensor", config.Sensor.Enabled))
		return
	}

	fmt.Fprintln(os.Stdout, app.Usage())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
