package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/mission"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
)

type storedSample struct {
	missionID string
	sample    sampling.Sample
}

type fakeStore struct {
	mu       sync.Mutex
	missions []mission.Mission
	samples  []storedSample
	battery  []string

	entered chan struct{} // signalled when StoreSample starts, if set
	gate    chan struct{} // StoreSample waits on it, if set
}

func (s *fakeStore) CreateMission(_ context.Context, m mission.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions = append(s.missions, m)
	return nil
}

func (s *fakeStore) Mission(context.Context, string) (*mission.Mission, error) { return nil, nil }
func (s *fakeStore) Missions(context.Context) ([]*mission.Mission, error)       { return nil, nil }

func (s *fakeStore) StoreSample(_ context.Context, missionID string, sample sampling.Sample) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, storedSample{missionID, sample})
	return nil
}

func (s *fakeStore) StoreBattery(_ context.Context, missionID string, _ sampling.BatteryDraw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery = append(s.battery, missionID)
	return nil
}

func (s *fakeStore) Close() error { return nil }

type fakeLog struct {
	samples int
	battery int
}

func (l *fakeLog) WriteSample(sampling.Sample) error       { l.samples++; return nil }
func (l *fakeLog) WriteBattery(sampling.BatteryDraw) error { l.battery++; return nil }

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRecorder_AssociatesMission(t *testing.T) {
	store := &fakeStore{}
	log := &fakeLog{}
	r := NewRecorder(store, log, discardLogger)

	now := time.Now()
	m := mission.Mission{ID: "b1d4a6c2-0d0e-4a8e-9a51-3c9f0c1f9a10", Kind: mission.KindDense, StartTime: now}

	r.RecordSample(sampling.Sample{Timestamp: now})
	r.MissionStarted(m)
	r.RecordSample(sampling.Sample{Timestamp: now.Add(time.Second)})
	r.RecordBattery(sampling.BatteryDraw{Timestamp: now.Add(time.Second)})
	r.MissionFinished(m)
	r.RecordSample(sampling.Sample{Timestamp: now.Add(2 * time.Second)})
	r.Close()

	if len(store.missions) != 1 || store.missions[0].ID != m.ID {
		t.Fatalf("Expected mission %s to be stored, got %v", m.ID, store.missions)
	}

	want := []string{"", m.ID, ""}
	if len(store.samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(store.samples))
	}
	for i, id := range want {
		if store.samples[i].missionID != id {
			t.Errorf("Sample %d: expected mission %q, got %q", i, id, store.samples[i].missionID)
		}
	}
	if len(store.battery) != 1 || store.battery[0] != m.ID {
		t.Errorf("Expected battery draw within mission %s, got %v", m.ID, store.battery)
	}

	if log.samples != 3 || log.battery != 1 {
		t.Errorf("Expected 3 sample and 1 battery log lines, got %d and %d", log.samples, log.battery)
	}
	if r.Dropped() != 0 {
		t.Errorf("Expected no dropped records, got %d", r.Dropped())
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	store := &fakeStore{
		entered: make(chan struct{}, 3),
		gate:    make(chan struct{}),
	}
	r := NewRecorder(store, &fakeLog{}, discardLogger, WithQueueSize(1))

	r.RecordSample(sampling.Sample{}) // picked up by the writer, which then blocks
	<-store.entered

	r.RecordSample(sampling.Sample{}) // waits in the queue
	r.RecordSample(sampling.Sample{}) // dropped

	if got := r.Dropped(); got != 1 {
		t.Errorf("Expected 1 dropped record, got %d", got)
	}

	close(store.gate)
	r.Close()

	if len(store.samples) != 2 {
		t.Errorf("Expected 2 stored samples, got %d", len(store.samples))
	}
}
