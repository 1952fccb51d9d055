package match

import (
	"time"

	"strangerchat/internal/app/event"
)

// Timer is the part of *time.Timer the grace supervisor needs.
type Timer interface {
	Stop() bool
}

// AfterFunc runs f after d unless the returned timer is stopped first.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// graceTimer holds a disconnected user's room open until it fires or is cancelled.
type graceTimer struct {
	userID string
	roomID string
	timer  Timer
}

func (g *graceTimer) stop() {
	if g.timer != nil {
		g.timer.Stop()
	}
}

// startGrace arms the grace timer for a paired user whose connection dropped.
func (e *Engine) startGrace(u *User) {
	if u.pending != nil {
		e.logger.Warn().Str("user_id", u.ID).Msg("Grace period already running.")
		return
	}

	g := &graceTimer{userID: u.ID, roomID: u.room.ID}
	u.pending = g
	g.timer = e.afterFunc(e.grace, func() { e.expireGrace(g) })

	e.logger.Info().
		Str("user_id", u.ID).
		Str("room_id", g.roomID).
		Dur("grace", e.grace).
		Msg("User disconnected, holding room.")
}

// expireGrace runs when a grace timer fires. A timer that was cancelled or
// superseded after it started firing finds itself no longer pending and does nothing.
func (e *Engine) expireGrace(g *graceTimer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users.lookup(g.userID)
	if !ok || u.pending != g {
		return
	}
	u.pending = nil

	if u.room != nil && u.room.ID == g.roomID {
		e.teardownRoom(g.roomID, u.ID, true)
	}
	e.users.remove(u.ID)

	e.logger.Info().Str("user_id", g.userID).Str("room_id", g.roomID).Msg("Grace period expired.")
}

// Reconnect rebinds a user that still holds a room to conn and cancels their grace
// period. It reports false, changing nothing, when there is no record or no room.
func (e *Engine) Reconnect(userID string, conn Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.users.lookup(userID)
	if !ok || u.room == nil {
		return false
	}

	if u.pending != nil {
		u.pending.stop()
		u.pending = nil
	}

	old := u.conn
	u.conn = conn
	e.replaced(u, old)

	e.logger.Info().Str("user_id", userID).Str("room_id", u.room.ID).Msg("User reconnected.")
	return true
}

// Resume is Reconnect followed by the matching system event on conn.
func (e *Engine) Resume(userID string, conn Conn) bool {
	ok := e.Reconnect(userID, conn)

	reply := event.SessionExpired
	if ok {
		reply = event.Reconnected
	}
	if err := conn.Send(reply); err != nil {
		e.logger.Debug().Err(err).Str("user_id", userID).Msg("Send dropped.")
	}
	return ok
}
