package tokens

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

var ist = time.FixedZone("UTC+05:30", 5*3600+30*60)

// newTestStore opens a fresh SQLite store whose clock is controlled by the returned pointer.
func newTestStore(t *testing.T) (*SQLStore, *time.Time) {
	t.Helper()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "tokens.db")
	s, err := Open(context.Background(), Config{DSN: dsn, Location: ist})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, ist)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), Config{DSN: "mysql://user:pw@host/db"}); err == nil {
		t.Fatal("expected error for unsupported DSN")
	}
}

func TestUpsertDevice_CountsOpens(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.UpsertDevice(ctx, "u1", "ExponentPushToken[a]", "Pixel"); err != nil {
			t.Fatalf("UpsertDevice: %v", err)
		}
	}

	*now = now.Add(24 * time.Hour)
	if err := s.UpsertDevice(ctx, "", "ExponentPushToken[a]", ""); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	devices, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}

	d := devices[0]
	if d.AppOpensTotal != 4 || d.AppOpensToday != 1 {
		t.Errorf("opens total/today = %d/%d, want 4/1", d.AppOpensTotal, d.AppOpensToday)
	}
	if d.UserID != "u1" || d.DeviceName != "Pixel" {
		t.Errorf("empty values must not erase known ones: %+v", d)
	}
	if d.LastOpenedAt == nil || !d.LastOpenedAt.Equal(*now) {
		t.Errorf("LastOpenedAt = %v, want %v", d.LastOpenedAt, *now)
	}
	if d.LastSentAt != nil {
		t.Errorf("LastSentAt = %v, want nil", d.LastSentAt)
	}
}

func TestEligibleTokens_CooldownAndExclusion(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	t1, t3, t4 := "ExponentPushToken[1]", "ExponentPushToken[3]", "ExpoPushToken[4]"
	for _, d := range []struct{ user, token string }{
		{"u1", t1}, {"u2", "ExponentPushToken[2]"}, {"u3", t3}, {"", t4},
	} {
		if err := s.UpsertDevice(ctx, d.user, d.token, ""); err != nil {
			t.Fatalf("UpsertDevice: %v", err)
		}
	}

	if err := s.MarkSent(ctx, []string{t1}); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	got, err := s.EligibleTokens(ctx, 100, 30*time.Minute, []string{"u2"})
	if err != nil {
		t.Fatalf("EligibleTokens: %v", err)
	}
	sort.Strings(got)
	if want := []string{t3, t4}; !equal(got, want) {
		t.Errorf("eligible = %v, want %v", got, want)
	}

	*now = now.Add(31 * time.Minute)
	got, _ = s.EligibleTokens(ctx, 100, 30*time.Minute, nil)
	if len(got) != 4 {
		t.Errorf("after cooldown eligible = %v, want all four", got)
	}

	got, _ = s.EligibleTokens(ctx, 2, 30*time.Minute, nil)
	if len(got) != 2 {
		t.Errorf("limit not applied: %v", got)
	}
}

func TestEligibleTokens_SkipsNonExpoTokens(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	expo := "ExponentPushToken[real]"
	if err := s.UpsertDevice(ctx, "u0", expo, ""); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	if err := s.MarkSent(ctx, []string{expo}); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	for i := 0; i < 100; i++ {
		if err := s.UpsertDevice(ctx, "", fmt.Sprintf("junk-%d", i), ""); err != nil {
			t.Fatalf("UpsertDevice: %v", err)
		}
	}

	*now = now.Add(31 * time.Minute)
	got, err := s.EligibleTokens(ctx, 100, 30*time.Minute, nil)
	if err != nil {
		t.Fatalf("EligibleTokens: %v", err)
	}
	if want := []string{expo}; !equal(got, want) {
		t.Errorf("eligible = %v, want %v", got, want)
	}
}

func TestMarkSent_BumpsCount(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	_ = s.UpsertDevice(ctx, "u1", "t1", "")

	_ = s.MarkSent(ctx, []string{"t1", "missing"})
	*now = now.Add(time.Hour)
	_ = s.MarkSent(ctx, []string{"t1"})

	devices, _ := s.List(ctx)
	if devices[0].PushCount != 2 {
		t.Errorf("PushCount = %d, want 2", devices[0].PushCount)
	}
	if devices[0].LastSentAt == nil || !devices[0].LastSentAt.Equal(*now) {
		t.Errorf("LastSentAt = %v, want %v", devices[0].LastSentAt, *now)
	}
	if err := s.MarkSent(ctx, nil); err != nil {
		t.Errorf("MarkSent(nil) = %v", err)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, tok := range []string{"t1", "t2", "t3"} {
		_ = s.UpsertDevice(ctx, "u", tok, "")
	}

	if ok, err := s.DeleteToken(ctx, "t1"); err != nil || !ok {
		t.Fatalf("DeleteToken(t1) = %v, %v", ok, err)
	}
	if ok, _ := s.DeleteToken(ctx, "t1"); ok {
		t.Error("second delete must report not found")
	}

	n, err := s.DeleteAll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("DeleteAll = %d, %v; want 2", n, err)
	}
}

func TestStats_UsesLocalDay(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	// Yesterday in IST: one device opened twice.
	*now = time.Date(2026, 3, 9, 23, 0, 0, 0, ist)
	_ = s.UpsertDevice(ctx, "u1", "old", "")
	_ = s.UpsertDevice(ctx, "u1", "old", "")

	// Today in IST starts 18:30 UTC the previous day.
	*now = time.Date(2026, 3, 10, 0, 30, 0, 0, ist)
	_ = s.UpsertDevice(ctx, "u2", "new", "")
	_ = s.UpsertDevice(ctx, "u2", "new", "")
	_ = s.UpsertDevice(ctx, "u2", "new", "")
	_ = s.UpsertDevice(ctx, "u1", "old", "")

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	want := Stats{
		UsersTotal:       2,
		NewUsersToday:    1,
		ActiveUsersToday: 2,
		AppOpensToday:    4,
		AppOpensAllTime:  6,
	}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
}

func TestStatsCache(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	c := NewStatsCache(s, time.Minute)

	_ = c.UpsertDevice(ctx, "u1", "t1", "")
	first, _ := c.Stats(ctx)

	_ = c.UpsertDevice(ctx, "u2", "t2", "")
	cached, _ := c.Stats(ctx)
	if cached != first {
		t.Errorf("cached stats changed: %+v vs %+v", cached, first)
	}

	_, _ = c.DeleteToken(ctx, "t1")
	fresh, _ := c.Stats(ctx)
	if fresh.UsersTotal != 1 {
		t.Errorf("stats after delete = %+v, want one user", fresh)
	}
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dialect: dialectPostgres}
	if got := s.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind = %q", got)
	}

	s.dialect = dialectSQLite
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
