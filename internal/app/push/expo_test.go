package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeRecorder struct {
	mu      sync.Mutex
	sent    []string
	deleted []string
}

func (r *fakeRecorder) MarkSent(_ context.Context, tokens []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, tokens...)
	return nil
}

func (r *fakeRecorder) DeleteToken(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, token)
	return true, nil
}

// expoServer answers every message with ok, except tokens listed in unregistered.
func expoServer(t *testing.T, unregistered map[string]bool, batches *[][]message, mu *sync.Mutex) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}

		var batch []message
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		mu.Lock()
		*batches = append(*batches, batch)
		mu.Unlock()

		res := sendResponse{}
		for _, m := range batch {
			tk := ticket{Status: "ok", ID: "id-" + m.To}
			if unregistered[m.To] {
				tk = ticket{Status: "error", Message: "not registered"}
				tk.Details.Error = errDeviceNotRegistered
			}
			res.Data = append(res.Data, tk)
		}
		_ = json.NewEncoder(w).Encode(res)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_RecordsTicketOutcomes(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]message
	)
	srv := expoServer(t, map[string]bool{"ExpoPushToken[gone]": true}, &batches, &mu)
	rec := &fakeRecorder{}
	e := NewExpo(rec, Config{URL: srv.URL})

	e.Send(context.Background(), []string{"ExponentPushToken[a]", "fcm:not-expo", "ExpoPushToken[gone]"}, 3)

	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of two Expo tokens", batches)
	}
	m := batches[0][0]
	if m.Body != "🔥 3 people are waiting to chat!" || m.Data.PoolSize != 3 || m.Title != "Stranger Chat" {
		t.Errorf("message = %+v", m)
	}
	if len(rec.sent) != 1 || rec.sent[0] != "ExponentPushToken[a]" {
		t.Errorf("sent = %v", rec.sent)
	}
	if len(rec.deleted) != 1 || rec.deleted[0] != "ExpoPushToken[gone]" {
		t.Errorf("deleted = %v", rec.deleted)
	}
}

func TestSend_SplitsIntoBatches(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]message
	)
	srv := expoServer(t, nil, &batches, &mu)
	rec := &fakeRecorder{}
	e := NewExpo(rec, Config{URL: srv.URL})

	tokens := make([]string, 250)
	for i := range tokens {
		tokens[i] = "ExponentPushToken[" + string(rune('a'+i%26)) + string(rune('0'+i/26)) + "]"
	}
	e.Send(context.Background(), tokens, 1)

	sizes := make([]int, 0, len(batches))
	for _, b := range batches {
		sizes = append(sizes, len(b))
	}
	sort.Ints(sizes)
	if len(sizes) != 3 || sizes[0] != 50 || sizes[1] != 100 || sizes[2] != 100 {
		t.Errorf("batch sizes = %v, want [50 100 100]", sizes)
	}
	if len(rec.sent) != 250 {
		t.Errorf("marked %d tokens sent, want 250", len(rec.sent))
	}
}

func TestSend_NoExpoTokensSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	NewExpo(&fakeRecorder{}, Config{URL: srv.URL}).Send(context.Background(), []string{"apns:abc"}, 2)

	if hits.Load() != 0 {
		t.Errorf("server hit %d times", hits.Load())
	}
}

func TestSend_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	e := NewExpo(rec, Config{URL: srv.URL})
	for i := 0; i < 10; i++ {
		e.Send(context.Background(), []string{"ExponentPushToken[a]"}, 1)
	}

	if got := hits.Load(); got != 5 {
		t.Errorf("server hit %d times, want 5 before the breaker opened", got)
	}
	if len(rec.sent) != 0 {
		t.Errorf("failed pushes recorded as sent: %v", rec.sent)
	}
}

func TestBody(t *testing.T) {
	tests := []struct {
		pool int
		want string
	}{
		{0, "🔥 someone is waiting to chat!"},
		{1, "🔥 someone is waiting to chat!"},
		{2, "🔥 2 people are waiting to chat!"},
	}
	for _, tt := range tests {
		if got := Body(tt.pool); got != tt.want {
			t.Errorf("Body(%d) = %q, want %q", tt.pool, got, tt.want)
		}
	}
}
