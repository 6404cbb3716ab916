package storage

import (
	"context"

	"github.com/roman-kulish/auv-navigation/internal/mission"
	"github.com/roman-kulish/auv-navigation/internal/sampling"
)

// Store provides an interface for persisting missions and the samples and
// battery records taken while they run. All write operations are atomic.
type Store interface {
	// CreateMission records a new mission.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - m: Mission with its UUID, kind, start time and optional JSON parameters
	//
	// Returns:
	//   - error: If the mission cannot be stored or context is cancelled
	CreateMission(ctx context.Context, m mission.Mission) error

	// Mission retrieves a mission by its ID.
	//
	// Returns:
	//   - mission: Pointer to mission data
	//   - error: If retrieval fails, the mission does not exist or context is cancelled
	Mission(ctx context.Context, id string) (*mission.Mission, error)

	// Missions returns all missions ordered by start time.
	Missions(ctx context.Context) ([]*mission.Mission, error)

	// StoreSample saves every probe reading of a sample in a single transaction.
	// An empty missionID stores the sample outside of any mission.
	StoreSample(ctx context.Context, missionID string, s sampling.Sample) error

	// StoreBattery saves a battery draw record. An empty missionID stores the
	// record outside of any mission.
	StoreBattery(ctx context.Context, missionID string, b sampling.BatteryDraw) error

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}
