package match

import (
	"time"

	"strangerchat/internal/app/event"
)

// Conn is the engine's handle on a live client connection. Send must not block
// indefinitely; a failed send is dropped. Implementations must be comparable
// (typically a pointer) so that stale connections can be recognized.
type Conn interface {
	Send(ev event.Outbound) error
}

// kicker is implemented by connections that can be told they were replaced.
type kicker interface {
	Kick(reason string)
}

// User is a registered participant.
type User struct {
	// ID is the opaque, client-chosen identifier.
	ID string

	// Avatar is shown to the partner in the paired event.
	Avatar string

	// conn is replaced on every register or reconnect.
	conn Conn

	// room is nil unless the user is paired.
	room *Room

	// pending is nil unless a grace period is running.
	pending *graceTimer
}

// Room pairs exactly two distinct users.
type Room struct {
	ID           string
	Participants [2]string
	CreatedAt    time.Time
}

// StartedAt is the room creation time in milliseconds since the epoch.
func (r *Room) StartedAt() int64 {
	return r.CreatedAt.UnixMilli()
}

// Has reports whether userID is one of the participants.
func (r *Room) Has(userID string) bool {
	return r.Participants[0] == userID || r.Participants[1] == userID
}

// Other returns the partner of userID.
func (r *Room) Other(userID string) (string, bool) {
	switch userID {
	case r.Participants[0]:
		return r.Participants[1], true
	case r.Participants[1]:
		return r.Participants[0], true
	default:
		return "", false
	}
}

// registry maps user ids to their records.
type registry struct {
	users map[string]*User
}

func newRegistry() *registry {
	return &registry{users: make(map[string]*User)}
}

// register creates the record or replaces its connection and avatar, keeping the
// room assignment. It returns the previous connection.
func (r *registry) register(id string, conn Conn, avatar string) (*User, Conn) {
	if u, ok := r.users[id]; ok {
		old := u.conn
		u.conn = conn
		u.Avatar = avatar
		return u, old
	}

	u := &User{ID: id, Avatar: avatar, conn: conn}
	r.users[id] = u
	return u, nil
}

func (r *registry) lookup(id string) (*User, bool) {
	u, ok := r.users[id]
	return u, ok
}

// remove deletes the record and cancels its grace timer, so a timer can never
// fire against a later record registered under the same id.
func (r *registry) remove(id string) {
	u, ok := r.users[id]
	if !ok {
		return
	}

	if u.pending != nil {
		u.pending.stop()
		u.pending = nil
	}
	delete(r.users, id)
}

func (r *registry) len() int {
	return len(r.users)
}

func (r *registry) ids() []string {
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids
}
