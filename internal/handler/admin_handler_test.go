package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"strangerchat/internal/app/match"
	"strangerchat/internal/app/tokens"
	"strangerchat/internal/configs"
	"strangerchat/internal/pkg/auth/jwt"
	"strangerchat/internal/pkg/errs"
)

const testSecret = "test-admin-secret"

type fakeStore struct {
	devices []tokens.Device
	stats   tokens.Stats
	err     error
}

func (s *fakeStore) UpsertDevice(context.Context, string, string, string) error { return s.err }

func (s *fakeStore) EligibleTokens(context.Context, int, time.Duration, []string) ([]string, error) {
	return nil, s.err
}

func (s *fakeStore) MarkSent(context.Context, []string) error { return s.err }

func (s *fakeStore) DeleteToken(_ context.Context, token string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for i, d := range s.devices {
		if d.Token == token {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) DeleteAll(context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	n := int64(len(s.devices))
	s.devices = nil
	return n, nil
}

func (s *fakeStore) List(context.Context) ([]tokens.Device, error) { return s.devices, s.err }

func (s *fakeStore) Stats(context.Context) (tokens.Stats, error) { return s.stats, s.err }

func (s *fakeStore) Close() error { return nil }

type fakeEngine struct{ stats match.Stats }

func (e fakeEngine) Snapshot() match.Stats { return e.stats }

func newTestRouter(t *testing.T, store *fakeStore) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return Router(ctx, &AppDeps{
		Config: &configs.AppConfig{
			Environment:    "production",
			AdminJWTSecret: testSecret,
		},
		Engine: fakeEngine{stats: match.Stats{Connected: 3, Queued: 1, Rooms: 1}},
		Tokens: store,
	})
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.GenerateToken("ops", role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, path, bearer string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON body %q", method, path, rec.Body.String())
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &fakeStore{})

	status, env := do(t, h, http.MethodGet, "/health", "")
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("health = %d %+v", status, env)
	}
}

func TestAdmin_RequiresAdminToken(t *testing.T) {
	h := newTestRouter(t, &fakeStore{})
	wrongSecret, _ := jwt.GenerateToken("ops", jwt.RoleAdmin, "other-secret", time.Hour)

	tests := []struct {
		name   string
		bearer string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", wrongSecret},
		{"wrong role", adminToken(t, "viewer")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, h, http.MethodGet, "/admin/tokens", tt.bearer)
			if status != http.StatusUnauthorized || env.Code != errs.ErrUnauthorized {
				t.Errorf("got %d %+v, want 401", status, env)
			}
		})
	}
}

func TestAdmin_ListAndStats(t *testing.T) {
	store := &fakeStore{
		devices: []tokens.Device{{Token: "ExponentPushToken[a]", UserID: "u1"}},
		stats:   tokens.Stats{UsersTotal: 1, AppOpensAllTime: 4},
	}
	h := newTestRouter(t, store)
	bearer := adminToken(t, jwt.RoleAdmin)

	status, env := do(t, h, http.MethodGet, "/admin/tokens", bearer)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var list TokenListResponse
	_ = json.Unmarshal(env.Data, &list)
	if list.Count != 1 || list.Tokens[0].UserID != "u1" {
		t.Errorf("list = %+v", list)
	}

	status, env = do(t, h, http.MethodGet, "/admin/tokens/stats", bearer)
	var stats tokens.Stats
	_ = json.Unmarshal(env.Data, &stats)
	if status != http.StatusOK || stats != store.stats {
		t.Errorf("stats = %d %+v", status, stats)
	}
}

func TestAdmin_DeleteToken(t *testing.T) {
	store := &fakeStore{devices: []tokens.Device{{Token: "t1"}, {Token: "t2"}}}
	h := newTestRouter(t, store)
	bearer := adminToken(t, jwt.RoleAdmin)

	if status, _ := do(t, h, http.MethodDelete, "/admin/tokens/t1", bearer); status != http.StatusOK {
		t.Errorf("delete t1 = %d", status)
	}

	status, env := do(t, h, http.MethodDelete, "/admin/tokens/t1", bearer)
	if status != http.StatusNotFound || env.Code != errs.ErrTokenNotFound {
		t.Errorf("second delete = %d %+v, want 404", status, env)
	}

	status, env = do(t, h, http.MethodDelete, "/admin/tokens", bearer)
	var res DeleteTokensResponse
	_ = json.Unmarshal(env.Data, &res)
	if status != http.StatusOK || res.Count != 1 || res.Status != "deleted" {
		t.Errorf("delete all = %d %+v", status, res)
	}
}

func TestAdmin_StoreFailure(t *testing.T) {
	h := newTestRouter(t, &fakeStore{err: errors.New("connection refused")})

	status, env := do(t, h, http.MethodGet, "/admin/tokens/stats", adminToken(t, jwt.RoleAdmin))
	if status != http.StatusServiceUnavailable || env.Code != errs.ErrTokenStoreFailed {
		t.Errorf("got %d %+v, want 503", status, env)
	}
}

func TestAdmin_EngineSnapshot(t *testing.T) {
	h := newTestRouter(t, &fakeStore{})

	status, env := do(t, h, http.MethodGet, "/admin/engine", adminToken(t, jwt.RoleAdmin))
	var got EngineResponse
	_ = json.Unmarshal(env.Data, &got)
	if status != http.StatusOK || got.Connected != 3 || got.Queued != 1 || got.Rooms != 1 {
		t.Errorf("engine = %d %+v", status, got)
	}
}
