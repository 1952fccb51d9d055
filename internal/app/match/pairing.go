package match

import (
	"strangerchat/internal/app/event"
)

// tryPair pops users from the head of the queue two at a time and opens a room for
// each pair. Entries without a user record are discarded. A lone survivor goes back
// to the head so it keeps its place.
func (e *Engine) tryPair() {
	for e.queue.Len() >= 2 {
		a := e.popLive()
		if a == nil {
			return
		}

		b := e.popLive()
		if b == nil {
			e.queue.PushFront(a.ID)
			return
		}

		e.openRoom(a, b)
		e.broadcastQueueSizeLocked()
	}
}

// popLive pops queue entries until one maps to a user record.
func (e *Engine) popLive() *User {
	for {
		id, ok := e.queue.PopFront()
		if !ok {
			return nil
		}

		if u, ok := e.users.lookup(id); ok {
			return u
		}
		e.logger.Debug().Str("user_id", id).Msg("Discarding stale queue entry.")
	}
}

func (e *Engine) openRoom(a, b *User) {
	id := e.newRoomID()
	for e.rooms[id] != nil {
		id = e.newRoomID()
	}

	room := &Room{
		ID:           id,
		Participants: [2]string{a.ID, b.ID},
		CreatedAt:    e.now(),
	}
	e.rooms[id] = room
	a.room = room
	b.room = room

	e.sendTo(a.ID, event.Paired{
		Room:      id,
		Partner:   event.Partner{ID: b.ID, Avatar: b.Avatar},
		StartedAt: room.StartedAt(),
	})
	e.sendTo(b.ID, event.Paired{
		Room:      id,
		Partner:   event.Partner{ID: a.ID, Avatar: a.Avatar},
		StartedAt: room.StartedAt(),
	})

	e.logger.Info().Str("room_id", id).Str("user_a", a.ID).Str("user_b", b.ID).Msg("Users paired.")
}

// teardownRoom deletes the room and clears both participants' assignment. When
// notifyPartner is set, the participant other than leaver is told their partner left.
// It is the only place a room is ever removed.
func (e *Engine) teardownRoom(roomID, leaver string, notifyPartner bool) {
	room, ok := e.rooms[roomID]
	if !ok {
		return
	}
	delete(e.rooms, roomID)

	for _, id := range room.Participants {
		if u, ok := e.users.lookup(id); ok && u.room == room {
			u.room = nil
		}
	}

	if notifyPartner {
		if partner, ok := room.Other(leaver); ok {
			e.sendTo(partner, event.PartnerLeft)
		}
	}

	e.logger.Info().Str("room_id", roomID).Str("leaver", leaver).Msg("Room closed.")
}
