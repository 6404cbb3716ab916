package telemetry

import (
	"sync/atomic"
	"time"
)

const defaultInboxSize = 256

// Update is a single inbound telemetry message waiting to be applied to a Snapshot
type Update interface {
	Apply(s *Snapshot)
}

// PositionUpdate carries a position fix
type PositionUpdate struct {
	At       time.Time
	Position Position
}

func (u PositionUpdate) Apply(s *Snapshot) { s.UpdatePosition(u.Position, u.At) }

// PressureUpdate carries one pressure sensor reading
type PressureUpdate struct {
	At       time.Time
	Sensor   int
	Pressure Pressure
}

func (u PressureUpdate) Apply(s *Snapshot) { s.UpdatePressure(u.Sensor, u.Pressure, u.At) }

// PowerUpdate carries a battery status
type PowerUpdate struct {
	At    time.Time
	Power Power
}

func (u PowerUpdate) Apply(s *Snapshot) { s.UpdatePower(u.Power, u.At) }

// Inbox queues telemetry updates posted by transport goroutines until the
// control loop drains them at a tick boundary. Post never blocks: when the
// inbox is full the update is dropped and counted.
type Inbox struct {
	updates chan Update
	dropped atomic.Uint64
}

// NewInbox creates an inbox holding up to size pending updates
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Inbox{updates: make(chan Update, size)}
}

// Post queues an update, it is safe to call from any goroutine
func (in *Inbox) Post(u Update) bool {
	select {
	case in.updates <- u:
		return true
	default:
		in.dropped.Add(1)
		return false
	}
}

// Drain applies every pending update to the snapshot in arrival order and
// returns the number of updates applied.
func (in *Inbox) Drain(s *Snapshot) int {
	var n int
	for {
		select {
		case u := <-in.updates:
			u.Apply(s)
			n++
		default:
			return n
		}
	}
}

// Dropped returns the number of updates lost to overflow
func (in *Inbox) Dropped() uint64 {
	return in.dropped.Load()
}
