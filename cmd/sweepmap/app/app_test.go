package app

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/mission"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/storage"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "missions.sqlite")

	m := mission.Mission{ID: "b1d4a6c2-0d0e-4a8e-9a51-3c9f0c1f9a10", Kind: mission.KindUnderwater, StartTime: time.Now().UTC().Truncate(time.Second)}

	store := storage.NewSqliteStore(dbPath)
	if err := store.CreateMission(ctx, m); err != nil {
		t.Fatalf("Failed to create mission: %v", err)
	}
	for i := 0; i < 10; i++ {
		err := store.StoreSample(ctx, m.ID, sampling.Sample{
			Timestamp: m.StartTime.Add(time.Duration(i) * 2 * time.Second),
			Readings: []sampling.Reading{
				{Channel: sampling.Channel{ID: "2", Name: "DO"}, Value: 7 + float64(i)/10},
				{Channel: sampling.Channel{ID: "3", Name: "Cond"}, Value: 400 + float64(i)},
			},
			Temperature: 18.5,
			Latitude:    -33.8568 + float64(i)*0.00003,
			Longitude:   151.2153,
		})
		if err != nil {
			t.Fatalf("Failed to store sample: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	if err := Run(ctx, &Config{DBPath: dbPath, ListMissions: true}, logger, &out); err != nil {
		t.Fatalf("Failed to list missions: %v", err)
	}
	if !strings.Contains(out.String(), m.ID) || !strings.Contains(out.String(), "underwater") {
		t.Errorf("Expected the mission to be listed, got %q", out.String())
	}

	config := NewConfig()
	config.DBPath = dbPath
	config.MissionID = m.ID
	config.OutputFile = filepath.Join(dir, "do.png")

	if err := Run(ctx, config, logger, io.Discard); err != nil {
		t.Fatalf("Failed to render mission: %v", err)
	}

	f, err := os.Open(config.OutputFile)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()

	if _, err = png.Decode(f); err != nil {
		t.Errorf("Expected a valid PNG, got %v", err)
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	config := &Config{DBPath: filepath.Join(t.TempDir(), "missing.sqlite"), ListMissions: true}
	if err := Run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard); err == nil {
		t.Error("Expected an error for a missing database")
	}
}
