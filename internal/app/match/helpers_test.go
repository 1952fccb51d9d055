package match

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"strangerchat/internal/app/event"
)

// fakeConn records every event sent to it.
type fakeConn struct {
	mu     sync.Mutex
	events []event.Outbound
	closed bool
}

func (c *fakeConn) Send(ev event.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("connection closed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) all() []event.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Outbound(nil), c.events...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// ofType returns the recorded events of one type, in order.
func (c *fakeConn) ofType(typ event.Type) []event.Outbound {
	var out []event.Outbound
	for _, ev := range c.all() {
		if ev.OutboundType() == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) lastQueueSize(t *testing.T) int {
	t.Helper()
	sizes := c.ofType(event.TypeQueueSize)
	if len(sizes) == 0 {
		t.Fatal("no queue_size event received")
	}
	return sizes[len(sizes)-1].(event.QueueSize).Count
}

func (c *fakeConn) paired(t *testing.T) event.Paired {
	t.Helper()
	ps := c.ofType(event.TypePaired)
	if len(ps) != 1 {
		t.Fatalf("got %d paired events, want 1", len(ps))
	}
	return ps[0].(event.Paired)
}

// manualTimers replaces time.AfterFunc; tests fire timers explicitly.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

// fireAll runs every timer that has not been stopped.
func (m *manualTimers) fireAll() {
	m.mu.Lock()
	timers := append([]*manualTimer(nil), m.timers...)
	m.mu.Unlock()

	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

func (m *manualTimers) last(t *testing.T) *manualTimer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		t.Fatal("no timer was scheduled")
	}
	return m.timers[len(m.timers)-1]
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []int
}

func (n *recordingNotifier) Trigger(poolSize int, _ []string) {
	n.mu.Lock()
	n.calls = append(n.calls, poolSize)
	n.mu.Unlock()
}

func newTestEngine(t *testing.T) (*Engine, *manualTimers) {
	t.Helper()

	timers := &manualTimers{}
	seq := 0
	nop := zerolog.Nop()

	e := NewEngine(Options{
		GracePeriod: 30 * time.Second,
		AfterFunc:   timers.AfterFunc,
		Now:         func() time.Time { return time.UnixMilli(1700000000000) },
		NewRoomID: func() string {
			seq++
			return fmt.Sprintf("room-%d", seq)
		},
		Logger: &nop,
	})
	return e, timers
}

// checkInvariants verifies the structural properties that must hold after every operation.
func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := map[string]bool{}
	for _, id := range e.queue.IDs() {
		if seen[id] {
			t.Errorf("user %s queued twice", id)
		}
		seen[id] = true
		if u, ok := e.users.lookup(id); ok && u.room != nil {
			t.Errorf("user %s is queued while in room %s", id, u.room.ID)
		}
	}

	for id, room := range e.rooms {
		if room.Participants[0] == room.Participants[1] {
			t.Errorf("room %s pairs %s with itself", id, room.Participants[0])
		}
		for _, p := range room.Participants {
			u, ok := e.users.lookup(p)
			if !ok {
				t.Errorf("room %s has participant %s without a record", id, p)
			} else if u.room != room {
				t.Errorf("room %s participant %s is not assigned to it", id, p)
			}
		}
	}

	for id, u := range e.users.users {
		if u.room != nil && e.rooms[u.room.ID] != u.room {
			t.Errorf("user %s points at closed room %s", id, u.room.ID)
		}
	}
}
