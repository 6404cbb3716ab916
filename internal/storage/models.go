package storage

import (
	"database/sql"
	"time"
)

type sampleData struct {
	MissionID   sql.NullString
	Timestamp   time.Time
	Channel     string
	Name        string
	Value       float64
	Stale       bool
	Temperature sql.NullFloat64
	Latitude    sql.NullFloat64
	Longitude   sql.NullFloat64
}

type batteryData struct {
	MissionID         sql.NullString
	Timestamp         time.Time
	MilliampsPerMeter float64
	Voltage           int64
	IntervalMs        int64
}
