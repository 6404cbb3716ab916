package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/auv-navigation/internal/mission"
)

// ReaderOption configures an observation reader with filtering criteria
type ReaderOption func(*SqliteObservationReader)

// WithChannel restricts the reader to a single probe channel
func WithChannel(channel string) ReaderOption {
	return func(r *SqliteObservationReader) {
		r.channel = &channel
	}
}

// WithTimeRange restricts the reader to observations taken in [start, end]
func WithTimeRange(start, end time.Time) ReaderOption {
	return func(r *SqliteObservationReader) {
		r.startTime = &start
		r.endTime = &end
	}
}

// WithoutStale skips readings that repeat an earlier value after a probe failure
func WithoutStale() ReaderOption {
	return func(r *SqliteObservationReader) {
		r.skipStale = true
	}
}

// SqliteObservationReader iterates over the probe readings of a mission
type SqliteObservationReader struct {
	db *sql.DB

	missionID string
	mission   *mission.Mission

	channel   *string
	startTime *time.Time
	endTime   *time.Time
	skipStale bool

	current *mission.Observation
	rows    *sql.Rows
	err     error
}

func newSqliteObservationReader(ctx context.Context, db *sql.DB, missionID string, opts ...ReaderOption) (*SqliteObservationReader, error) {
	r := &SqliteObservationReader{
		db:        db,
		missionID: missionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteObservationReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.missionID == "" {
		return errors.New("mission ID required")
	}
	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading mission", fn: r.loadMission},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteObservationReader) loadMission(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectMissionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	r.mission, err = scanMission(stmt.QueryRowContext(ctx, r.missionID))
	return
}

func (r *SqliteObservationReader) initQuery(ctx context.Context) (err error) {
	var sb strings.Builder
	sb.WriteString(selectObservationsSQL)
	args := []any{r.missionID}

	if r.channel != nil {
		sb.WriteString("\n  AND channel = ?")
		args = append(args, *r.channel)
	}
	if r.startTime != nil && r.endTime != nil {
		sb.WriteString("\n  AND timestamp BETWEEN ? AND ?")
		args = append(args, r.startTime.UTC(), r.endTime.UTC())
	}
	if r.skipStale {
		sb.WriteString("\n  AND stale = 0")
	}
	sb.WriteString("\nORDER BY timestamp, channel")

	r.rows, err = r.db.QueryContext(ctx, sb.String(), args...)
	return
}

// Mission returns the mission this reader is accessing
func (r *SqliteObservationReader) Mission() *mission.Mission {
	return r.mission
}

// Next advances to the next observation. It returns false at the end of the
// data or on error; Error distinguishes the two.
func (r *SqliteObservationReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		r.current = nil
		return false
	}

	var o mission.Observation
	var temperature, latitude, longitude sql.NullFloat64
	if err := r.rows.Scan(&o.Timestamp, &o.Channel, &o.Name, &o.Value, &o.Stale, &temperature, &latitude, &longitude); err != nil {
		r.err = fmt.Errorf("scanning observation: %w", err)
		return false
	}
	o.Temperature = temperature.Float64
	o.Latitude = latitude.Float64
	o.Longitude = longitude.Float64

	r.current = &o
	return true
}

// Current returns the observation Next advanced to
func (r *SqliteObservationReader) Current() *mission.Observation {
	return r.current
}

// Error returns any error that occurred during iteration
func (r *SqliteObservationReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

// Close releases the database resources held by the reader
func (r *SqliteObservationReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}
