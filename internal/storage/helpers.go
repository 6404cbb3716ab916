package storage

import (
	"database/sql"
	"errors"

	"github.com/roman-kulish/auv-navigation/internal/sampling"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// toSampleData flattens a sample into one row per probe reading
func toSampleData(missionID string, s sampling.Sample) []sampleData {
	rows := make([]sampleData, len(s.Readings))
	for i, r := range s.Readings {
		rows[i] = sampleData{
			MissionID:   toNullString(missionID),
			Timestamp:   s.Timestamp.UTC(),
			Channel:     r.Channel.ID,
			Name:        r.Channel.Name,
			Value:       r.Value,
			Stale:       r.Stale,
			Temperature: sql.NullFloat64{Float64: s.Temperature, Valid: true},
			Latitude:    sql.NullFloat64{Float64: s.Latitude, Valid: true},
			Longitude:   sql.NullFloat64{Float64: s.Longitude, Valid: true},
		}
	}
	return rows
}

func toBatteryData(missionID string, b sampling.BatteryDraw) batteryData {
	return batteryData{
		MissionID:         toNullString(missionID),
		Timestamp:         b.Timestamp.UTC(),
		MilliampsPerMeter: b.MilliampsPerMeter,
		Voltage:           int64(b.Voltage),
		IntervalMs:        b.Interval.Milliseconds(),
	}
}
