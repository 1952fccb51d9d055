package match

import (
	"strangerchat/internal/app/event"
)

type delivery struct {
	userID string
	conn   Conn
}

// RelayMessage sends a chat message to both participants of roomID, the sender included.
// Unknown rooms and senders outside the room are ignored.
func (e *Engine) RelayMessage(senderID, roomID, text string, sentAt int64) {
	targets := e.roomTargets(senderID, roomID, true)
	e.deliver(targets, event.Message{Room: roomID, Text: text, SentAt: sentAt})
}

// RelayTyping sends a typing indicator to the sender's partner in roomID.
func (e *Engine) RelayTyping(senderID, roomID string, isTyping bool) {
	targets := e.roomTargets(senderID, roomID, false)
	e.deliver(targets, event.Typing{Room: roomID, IsTyping: isTyping})
}

// BroadcastQueueSize sends the current queue length to every registered user.
func (e *Engine) BroadcastQueueSize() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.broadcastQueueSizeLocked()
}

func (e *Engine) broadcastQueueSizeLocked() {
	ev := event.QueueSize{Count: e.queue.Len()}
	for id := range e.users.users {
		e.sendTo(id, ev)
	}
}

// roomTargets snapshots the connections of roomID's participants under the lock.
func (e *Engine) roomTargets(senderID, roomID string, includeSender bool) []delivery {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, ok := e.rooms[roomID]
	if !ok || !room.Has(senderID) {
		return nil
	}

	targets := make([]delivery, 0, 2)
	for _, id := range room.Participants {
		if id == senderID && !includeSender {
			continue
		}
		if u, ok := e.users.lookup(id); ok && u.conn != nil {
			targets = append(targets, delivery{userID: id, conn: u.conn})
		}
	}
	return targets
}

func (e *Engine) deliver(targets []delivery, ev event.Outbound) {
	for _, t := range targets {
		if err := t.conn.Send(ev); err != nil {
			e.logger.Debug().Err(err).Str("user_id", t.userID).Str("event", string(ev.OutboundType())).Msg("Send dropped.")
		}
	}
}
