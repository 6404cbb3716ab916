package motor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultHeartbeat is the period at which an unchanged override is re-sent
	DefaultHeartbeat = 500 * time.Millisecond

	// DefaultResendCount is the number of extra transmissions following a change
	DefaultResendCount = 3

	// DefaultIdleInterval is how long the executor holds neutral when the queue is empty
	DefaultIdleInterval = time.Second
)

// ErrLinkUnavailable is returned by a Sink that is not connected or not armed
var ErrLinkUnavailable = errors.New("rc link unavailable")

// Sink transmits the RC override array to the vehicle. Send must not block
// for longer than a fraction of a tick.
type Sink interface {
	Send(o Override) error
}

// WithLogger sets the logger for the executor
func WithLogger(logger *slog.Logger) func(e *Executor) {
	return func(e *Executor) {
		e.logger = logger.With(slog.String("component", "motor"))
	}
}

// WithHeartbeat sets the period of unconditional override resends
func WithHeartbeat(d time.Duration) func(e *Executor) {
	return func(e *Executor) {
		e.heartbeat = d
	}
}

// WithResendCount sets how many extra times a changed override is transmitted
func WithResendCount(n int) func(e *Executor) {
	return func(e *Executor) {
		e.resendCount = n
	}
}

// WithIdleInterval sets how long neutral is held when there is nothing to run
func WithIdleInterval(d time.Duration) func(e *Executor) {
	return func(e *Executor) {
		e.idleInterval = d
	}
}

// Executor consumes the command queue one command at a time and keeps the RC
// override array flowing to the sink. Exactly one command is active until its
// deadline passes; higher level logic expresses "do X for N seconds" as an
// Enqueue instead of a sleep.
type Executor struct {
	queue *Queue
	sink  Sink

	override Override
	active   *Command
	deadline time.Time

	lastSent    Override
	lastSentAt  time.Time
	everSent    bool
	resends     int
	linkDown    bool
	heartbeat   time.Duration
	resendCount int

	idleInterval time.Duration
	logger       *slog.Logger
}

// NewExecutor creates an executor draining q into sink, with a discard logger
func NewExecutor(q *Queue, sink Sink, options ...func(e *Executor)) *Executor {
	e := Executor{
		queue:        q,
		sink:         sink,
		override:     NeutralOverride(),
		heartbeat:    DefaultHeartbeat,
		resendCount:  DefaultResendCount,
		idleInterval: DefaultIdleInterval,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Tick advances the executor to now. Once the active command's deadline has
// passed, the override falls back to neutral and the next queued command, if
// any, becomes active. The override is then transmitted when it changed, while
// the resend countdown runs, or when the heartbeat period elapsed.
//
// While the link is down the queue is left alone: neutral is re-sent every tick
// and commands resume on the first tick the sink accepts it.
func (e *Executor) Tick(now time.Time) {
	if e.linkDown {
		if e.transmit(now, true); e.linkDown {
			return
		}
	}

	if !now.Before(e.deadline) {
		e.override.Neutral()
		e.active = nil

		if c, ok := e.queue.Dequeue(); ok {
			e.override.Apply(c)
			e.active = &c
			e.deadline = now.Add(c.Duration())
			e.logger.Debug("command started", slog.String("command", c.String()), slog.Int("pending", e.queue.Len()))
		} else {
			e.deadline = now.Add(e.idleInterval)
		}
	}

	e.transmit(now, false)
}

// StopAll cancels everything: the queue is cleared, the override returns to
// neutral and is transmitted immediately. It is idempotent.
func (e *Executor) StopAll(now time.Time) {
	e.queue.Clear()
	e.override.Neutral()
	e.active = nil
	e.deadline = now.Add(e.idleInterval)
	e.resends = e.resendCount

	e.transmit(now, true)
}

// Idle reports whether no command is active and nothing is queued. It is
// false while the link is down so nothing new is planned into an outage.
func (e *Executor) Idle() bool {
	return !e.linkDown && e.active == nil && e.queue.Empty()
}

// LinkDown reports whether the last transmission failed
func (e *Executor) LinkDown() bool {
	return e.linkDown
}

// Active returns the command currently driving the thrusters
func (e *Executor) Active() (Command, bool) {
	if e.active == nil {
		return Command{}, false
	}
	return *e.active, true
}

// Override returns a copy of the current override array
func (e *Executor) Override() Override {
	return e.override
}

// Deadline returns the time at which the active command (or idle hold) expires
func (e *Executor) Deadline() time.Time {
	return e.deadline
}

func (e *Executor) transmit(now time.Time, force bool) {
	changed := !e.everSent || e.override != e.lastSent
	due := force || changed || e.resends > 0 || now.Sub(e.lastSentAt) >= e.heartbeat
	if !due {
		return
	}

	if err := e.sink.Send(e.override); err != nil {
		e.linkFailed(now, err)
		return
	}

	if e.linkDown {
		e.linkDown = false
		e.logger.Info("rc link restored")
	}

	if changed {
		e.resends = e.resendCount
	} else if e.resends > 0 {
		e.resends--
	}

	e.lastSent = e.override
	e.lastSentAt = now
	e.everSent = true
}

// linkFailed drops the active command; the queue stays intact and Tick only
// retries the transmission until it succeeds.
func (e *Executor) linkFailed(now time.Time, err error) {
	if !e.linkDown {
		e.linkDown = true
		e.logger.Warn(fmt.Sprintf("sending rc override: %s", err.Error()))
	}

	if e.active != nil {
		e.logger.Warn("command dropped", slog.String("command", e.active.String()))

		e.override.Neutral()
		e.active = nil
		e.deadline = now
	}
}
