/*
Package match implements the matchmaking engine: the connection registry, the wait queue,
room pairing and teardown, the reconnect grace supervisor and message relay.

All engine state sits behind a single mutex. Mutating operations deliver their events
while holding it, which is safe because Conn.Send never blocks indefinitely; relays
snapshot the room under the lock and send after releasing it.
*/
package match

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"strangerchat/internal/app/event"
	"strangerchat/internal/pkg/logx"
	"strangerchat/internal/pkg/randx"
)

// DefaultGracePeriod is how long a disconnected, paired user keeps their room.
const DefaultGracePeriod = 30 * time.Second

// Notifier is told whenever a join leaves users waiting in the queue.
// Trigger must return quickly; it is called with the engine lock held.
type Notifier interface {
	Trigger(poolSize int, connectedUserIDs []string)
}

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	GracePeriod time.Duration
	Notifier    Notifier
	Logger      *zerolog.Logger

	// AfterFunc schedules grace expiry; tests substitute a manual clock.
	AfterFunc AfterFunc

	// Now stamps room creation.
	Now func() time.Time

	// NewRoomID generates room identifiers.
	NewRoomID func() string
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Connected int `json:"connected"`
	Queued    int `json:"queued"`
	Rooms     int `json:"rooms"`
	Grace     int `json:"grace"`
}

// Engine owns every user record, the wait queue and the active rooms.
type Engine struct {
	mu sync.Mutex

	users *registry
	queue *WaitQueue
	rooms map[string]*Room

	grace     time.Duration
	notifier  Notifier
	afterFunc AfterFunc
	now       func() time.Time
	newRoomID func() string
	logger    zerolog.Logger
}

// NewEngine creates an idle engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		users:     newRegistry(),
		queue:     NewWaitQueue(),
		rooms:     make(map[string]*Room),
		grace:     opts.GracePeriod,
		notifier:  opts.Notifier,
		afterFunc: opts.AfterFunc,
		now:       opts.Now,
		newRoomID: opts.NewRoomID,
	}

	if e.grace <= 0 {
		e.grace = DefaultGracePeriod
	}
	if e.afterFunc == nil {
		e.afterFunc = realAfterFunc
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newRoomID == nil {
		e.newRoomID = randx.RoomID
	}
	if opts.Logger != nil {
		e.logger = *opts.Logger
	} else {
		e.logger = logx.Component("matchmaker")
	}

	return e
}

// Register creates the user record or replaces its connection and avatar.
// An existing room assignment survives; a pending grace timer is cancelled because
// the user is connected again.
func (e *Engine) Register(userID string, conn Conn, avatar string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registerLocked(userID, conn, avatar)
}

// JoinQueue puts a registered user without a room into the wait queue and
// pairs as many waiting users as possible.
func (e *Engine) JoinQueue(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.joinQueueLocked(userID)
}

// Join registers the user on conn and queues them in one critical section.
func (e *Engine) Join(userID string, conn Conn, avatar string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registerLocked(userID, conn, avatar)
	e.joinQueueLocked(userID)
}

// Next ends the user's current room, notifying the partner, and queues the user again.
// A user without a room is left untouched.
func (e *Engine) Next(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users.lookup(userID)
	if !ok || u.room == nil {
		return
	}

	e.teardownRoom(u.room.ID, userID, true)
	e.sendTo(userID, event.Searching)

	e.queue.PushBack(userID)
	e.broadcastQueueSizeLocked()
	e.tryPair()
}

// RemoveUser takes the user out of the queue and then either starts a grace period
// (a paired user whose connection dropped) or tears down their room and forgets them.
func (e *Engine) RemoveUser(userID string, isDisconnect bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeUserLocked(userID, isDisconnect)
}

// Disconnect is RemoveUser(userID, true) for a connection that closed. It is ignored
// when conn is no longer the user's registered connection.
func (e *Engine) Disconnect(userID string, conn Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users.lookup(userID)
	if !ok {
		return
	}
	if u.conn != conn {
		e.logger.Debug().Str("user_id", userID).Msg("Ignoring disconnect for stale connection.")
		return
	}

	e.removeUserLocked(userID, true)
}

// Snapshot returns the current engine counters.
func (e *Engine) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Connected: e.users.len(),
		Queued:    e.queue.Len(),
		Rooms:     len(e.rooms),
	}
	for _, u := range e.users.users {
		if u.pending != nil {
			s.Grace++
		}
	}
	return s
}

// Shutdown stops every pending grace timer and then waits for in-flight notifier work
// until ctx expires. Rooms and records are left as they are; the process is exiting.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	stopped := 0
	for _, u := range e.users.users {
		if u.pending != nil {
			u.pending.stop()
			u.pending = nil
			stopped++
		}
	}
	e.mu.Unlock()

	e.logger.Info().Int("grace_timers", stopped).Msg("Matchmaking engine stopped.")

	if w, ok := e.notifier.(interface{ Wait(context.Context) error }); ok {
		return w.Wait(ctx)
	}
	return nil
}

func (e *Engine) registerLocked(userID string, conn Conn, avatar string) {
	u, old := e.users.register(userID, conn, avatar)
	if u.pending != nil {
		u.pending.stop()
		u.pending = nil
		e.logger.Info().Str("user_id", userID).Msg("Grace period cancelled by a new session.")
	}
	e.replaced(u, old)
}

// replaced kicks the previous connection of u, if any, without blocking the lock.
func (e *Engine) replaced(u *User, old Conn) {
	if old == nil || old == u.conn {
		return
	}

	e.logger.Info().Str("user_id", u.ID).Msg("Connection replaced by a new session.")
	if k, ok := old.(kicker); ok {
		go k.Kick("Session replaced")
	}
}

func (e *Engine) joinQueueLocked(userID string) {
	u, ok := e.users.lookup(userID)
	if !ok {
		e.logger.Warn().Str("user_id", userID).Msg("Join ignored: user is not registered.")
		return
	}

	if u.room == nil && e.queue.PushBack(userID) {
		if e.notifier != nil {
			e.notifier.Trigger(e.queue.Len(), e.users.ids())
		}
		e.broadcastQueueSizeLocked()
	}

	e.tryPair()
}

func (e *Engine) removeUserLocked(userID string, isDisconnect bool) {
	queued := e.queue.Remove(userID)

	u, ok := e.users.lookup(userID)
	if !ok {
		if queued {
			e.broadcastQueueSizeLocked()
		}
		return
	}

	if u.room != nil {
		if isDisconnect {
			e.startGrace(u)
			return
		}
		e.teardownRoom(u.room.ID, userID, true)
	}

	e.users.remove(userID)
	e.broadcastQueueSizeLocked()
}

// sendTo delivers ev to the user's current connection, if any. Failures are dropped.
func (e *Engine) sendTo(userID string, ev event.Outbound) {
	u, ok := e.users.lookup(userID)
	if !ok || u.conn == nil {
		return
	}

	if err := u.conn.Send(ev); err != nil {
		e.logger.Debug().Err(err).Str("user_id", userID).Str("event", string(ev.OutboundType())).Msg("Send dropped.")
	}
}
