package storage

import (
	_ "embed"
)

const (
	insertMissionSQL = `
INSERT INTO missions (
                      id,
                      kind,
                      start_time,
                      config)
VALUES (?, ?, ?, ?)`

	selectMissionSQL = `
SELECT 
    id, 
    kind, 
    start_time, 
    config 
FROM missions 
WHERE 
    id = ?`

	selectMissionsSQL = `
SELECT 
    id, 
    kind, 
    start_time, 
    config 
FROM missions
ORDER BY start_time`

	insertSampleSQL = `
INSERT INTO samples (
                     mission_id,
                     timestamp,
                     channel,
                     name,
                     value,
                     stale,
                     temperature,
                     latitude,
                     longitude)
VALUES `

	insertBatterySQL = `
INSERT INTO battery (
                     mission_id,
                     timestamp,
                     milliamps_per_meter,
                     voltage,
                     interval_ms)
VALUES (?, ?, ?, ?, ?)`

	selectObservationsSQL = `
SELECT 
    timestamp,
    channel,
    name,
    value,
    stale,
    temperature,
    latitude,
    longitude
FROM samples
WHERE 
    mission_id = ?`
)

//go:embed schema.sql
var initSchemaSQL string
