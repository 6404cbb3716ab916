package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/auv-navigation/internal/mission"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
)

var _ Store = (*SqliteStore)(nil)

// SqliteStore handles database operations. Write and read connections are
// opened lazily; the schema is created with the write connection.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the SQLite database at dbPath
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateMission(ctx context.Context, m mission.Mission) (err error) {
	if m.ID == "" {
		return errors.New("mission ID required")
	}

	var config sql.NullString
	if m.Config != nil {
		config.String = *m.Config
		config.Valid = true
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertMissionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, m.ID, string(m.Kind), m.StartTime.UTC(), config); err != nil {
		return fmt.Errorf("inserting mission: %w", err)
	}
	return nil
}

func (s *SqliteStore) Mission(ctx context.Context, id string) (m *mission.Mission, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectMissionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	return scanMission(stmt.QueryRowContext(ctx, id))
}

func (s *SqliteStore) Missions(ctx context.Context) (missions []*mission.Mission, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectMissionsSQL)
	if err != nil {
		err = fmt.Errorf("querying missions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var m *mission.Mission
		if m, err = scanMission(rows); err != nil {
			return
		}
		missions = append(missions, m)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating missions: %w", err)
	}
	return
}

func scanMission(row interface{ Scan(dest ...any) error }) (*mission.Mission, error) {
	var m mission.Mission
	var kind string
	var config sql.NullString

	if err := row.Scan(&m.ID, &kind, &m.StartTime, &config); err != nil {
		return nil, fmt.Errorf("scanning mission: %w", err)
	}

	k, err := mission.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("scanning mission %s: %w", m.ID, err)
	}
	m.Kind = k

	if config.Valid {
		m.Config = &config.String
	}
	return &m, nil
}

func (s *SqliteStore) StoreSample(ctx context.Context, missionID string, sample sampling.Sample) (err error) {
	if len(sample.Readings) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	rows := toSampleData(missionID, sample)
	values := make([]any, 0, len(rows)*9)

	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertSampleSQL)

	for i, data := range rows {
		values = append(values,
			data.MissionID,
			data.Timestamp,
			data.Channel,
			data.Name,
			data.Value,
			data.Stale,
			data.Temperature,
			data.Latitude,
			data.Longitude,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting readings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) StoreBattery(ctx context.Context, missionID string, b sampling.BatteryDraw) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertBatterySQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	data := toBatteryData(missionID, b)
	if _, err = stmt.ExecContext(ctx, data.MissionID, data.Timestamp, data.MilliampsPerMeter, data.Voltage, data.IntervalMs); err != nil {
		return fmt.Errorf("inserting battery record: %w", err)
	}
	return nil
}

// ReadObservations creates a reader over the probe readings recorded during a
// mission, ordered by time. The reader must be closed after use.
func (s *SqliteStore) ReadObservations(ctx context.Context, missionID string, opts ...ReaderOption) (*SqliteObservationReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteObservationReader(ctx, db, missionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
