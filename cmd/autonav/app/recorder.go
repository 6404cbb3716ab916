package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/mission"
	"github.com/roman-kulish/auv-navigation/internal/nav"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
	"github.com/roman-kulish/auv-navigation/internal/storage"
)

const (
	defaultQueueSize = 64
	writeTimeout     = 5 * time.Second
)

// lineWriter is the append-only text log
type lineWriter interface {
	WriteSample(s sampling.Sample) error
	WriteBattery(b sampling.BatteryDraw) error
}

type recordKind int

const (
	recordSample recordKind = iota
	recordBattery
	recordMissionStarted
	recordMissionFinished
)

type record struct {
	kind    recordKind
	sample  sampling.Sample
	battery sampling.BatteryDraw
	mission mission.Mission
}

// WithQueueSize sets how many records may wait for the writer before new
// ones are dropped
func WithQueueSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.queueSize = size
		}
	}
}

// Recorder hands samples, battery draws and mission events to a background
// writer that stores them in the mission database and the text logs. It never
// blocks the control tick: when the writer falls behind, records are dropped.
type Recorder struct {
	store storage.Store
	log   lineWriter

	records   chan record
	queueSize int
	dropped   atomic.Uint64
	missionID string // owned by the writer goroutine

	wg     sync.WaitGroup
	logger *slog.Logger
}

var (
	_ sampling.Recorder   = (*Recorder)(nil)
	_ nav.MissionObserver = (*Recorder)(nil)
)

// NewRecorder creates a recorder and starts its writer
func NewRecorder(store storage.Store, log lineWriter, logger *slog.Logger, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:     store,
		log:       log,
		queueSize: defaultQueueSize,
		logger:    logger.With(slog.String("component", "recorder")),
	}

	for _, option := range options {
		option(&r)
	}

	r.records = make(chan record, r.queueSize)

	r.wg.Add(1)
	go r.handleRecords()

	return &r
}

func (r *Recorder) RecordSample(s sampling.Sample) {
	r.enqueue(record{kind: recordSample, sample: s})
}

func (r *Recorder) RecordBattery(b sampling.BatteryDraw) {
	r.enqueue(record{kind: recordBattery, battery: b})
}

func (r *Recorder) MissionStarted(m mission.Mission) {
	r.enqueue(record{kind: recordMissionStarted, mission: m})
}

func (r *Recorder) MissionFinished(m mission.Mission) {
	r.enqueue(record{kind: recordMissionFinished, mission: m})
}

// Dropped returns the number of records lost to a full queue
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close flushes queued records and stops the writer. Records passed after
// Close are not accepted.
func (r *Recorder) Close() {
	close(r.records)
	r.wg.Wait()
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.records <- rec:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("recorder queue full, dropping records")
		}
	}
}

func (r *Recorder) handleRecords() {
	defer r.wg.Done()

	for rec := range r.records {
		if err := r.storeRecord(rec); err != nil {
			r.logger.Error(err.Error())
		}
	}
}

func (r *Recorder) storeRecord(rec record) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch rec.kind {
	case recordMissionStarted:
		r.missionID = rec.mission.ID
		if err := r.store.CreateMission(ctx, rec.mission); err != nil {
			return fmt.Errorf("storing mission %s: %w", rec.mission.ID, err)
		}

	case recordMissionFinished:
		if r.missionID == rec.mission.ID {
			r.missionID = ""
		}

	case recordSample:
		if err := r.log.WriteSample(rec.sample); err != nil {
			r.logger.Error(fmt.Sprintf("writing samples log: %s", err.Error()))
		}
		if err := r.store.StoreSample(ctx, r.missionID, rec.sample); err != nil {
			return fmt.Errorf("storing sample: %w", err)
		}

	case recordBattery:
		if err := r.log.WriteBattery(rec.battery); err != nil {
			r.logger.Error(fmt.Sprintf("writing battery log: %s", err.Error()))
		}
		if err := r.store.StoreBattery(ctx, r.missionID, rec.battery); err != nil {
			return fmt.Errorf("storing battery draw: %w", err)
		}
	}

	return nil
}
