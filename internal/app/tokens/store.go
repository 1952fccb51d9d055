/*
Package tokens persists Expo push tokens and the app-open counters reported with them.

One SQL implementation serves both PostgreSQL (pgx) and SQLite (modernc.org/sqlite).
Timestamps are stored as Unix milliseconds so the same schema and queries work on both.
*/
package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable push-token store.
type Store interface {
	// UpsertDevice records an app open for token, creating the row on first sight.
	UpsertDevice(ctx context.Context, userID, token, deviceName string) error

	// EligibleTokens returns up to limit tokens not notified within cooldown, skipping
	// tokens owned by any of excludeUserIDs.
	EligibleTokens(ctx context.Context, limit int, cooldown time.Duration, excludeUserIDs []string) ([]string, error)

	// MarkSent stamps the tokens as notified now and bumps their push count.
	MarkSent(ctx context.Context, tokens []string) error

	// DeleteToken removes one token and reports whether it existed.
	DeleteToken(ctx context.Context, token string) (bool, error)

	// DeleteAll removes every token and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)

	List(ctx context.Context) ([]Device, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Device is one stored push token.
type Device struct {
	Token         string     `json:"token"`
	UserID        string     `json:"userId,omitempty"`
	DeviceName    string     `json:"deviceName,omitempty"`
	PushCount     int        `json:"pushCount"`
	AppOpensTotal int        `json:"appOpensTotal"`
	AppOpensToday int        `json:"appOpensToday"`
	LastOpenedAt  *time.Time `json:"lastOpenedAt,omitempty"`
	LastSentAt    *time.Time `json:"lastSentAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Stats summarizes the registered devices. "Today" starts at midnight in the store's location.
type Stats struct {
	UsersTotal       int64 `json:"users_total"`
	NewUsersToday    int64 `json:"new_users_today"`
	ActiveUsersToday int64 `json:"active_users_today"`
	AppOpensToday    int64 `json:"app_opens_today"`
	AppOpensAllTime  int64 `json:"app_opens_all_time"`
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect string
	loc     *time.Location
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

const upsertDeviceSQL = `
INSERT INTO push_tokens (token, user_id, device_name, app_opens_total, app_opens_today, last_opened_at, created_at)
VALUES (?, ?, ?, 1, 1, ?, ?)
ON CONFLICT (token) DO UPDATE SET
    user_id = COALESCE(excluded.user_id, push_tokens.user_id),
    device_name = COALESCE(excluded.device_name, push_tokens.device_name),
    app_opens_total = push_tokens.app_opens_total + 1,
    app_opens_today = CASE
        WHEN push_tokens.last_opened_at >= ? THEN push_tokens.app_opens_today + 1
        ELSE 1
    END,
    last_opened_at = excluded.last_opened_at`

func (s *SQLStore) UpsertDevice(ctx context.Context, userID, token, deviceName string) error {
	now := s.now()

	_, err := s.db.ExecContext(ctx, s.rebind(upsertDeviceSQL),
		token, nullable(userID), nullable(deviceName), now.UnixMilli(), now.UnixMilli(), s.todayStart(now))
	if err != nil {
		return fmt.Errorf("failed to upsert push token: %w", err)
	}
	return nil
}

func (s *SQLStore) EligibleTokens(ctx context.Context, limit int, cooldown time.Duration, excludeUserIDs []string) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("SELECT token FROM push_tokens WHERE (last_sent_at IS NULL OR last_sent_at < ?)")
	b.WriteString(" AND (token LIKE 'ExponentPushToken%' OR token LIKE 'ExpoPushToken%')")
	args := []any{s.now().Add(-cooldown).UnixMilli()}

	if len(excludeUserIDs) > 0 {
		b.WriteString(" AND (user_id IS NULL OR user_id NOT IN (")
		b.WriteString(placeholders(len(excludeUserIDs)))
		b.WriteString("))")
		for _, id := range excludeUserIDs {
			args = append(args, id)
		}
	}

	b.WriteString(" ORDER BY COALESCE(last_sent_at, 0), created_at LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible tokens: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan eligible token: %w", err)
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkSent(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	query := "UPDATE push_tokens SET last_sent_at = ?, push_count = push_count + 1 WHERE token IN (" +
		placeholders(len(tokens)) + ")"

	args := make([]any, 0, len(tokens)+1)
	args = append(args, s.now().UnixMilli())
	for _, t := range tokens {
		args = append(args, t)
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark tokens as sent: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteToken(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM push_tokens WHERE token = ?"), token)
	if err != nil {
		return false, fmt.Errorf("failed to delete push token: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM push_tokens")
	if err != nil {
		return 0, fmt.Errorf("failed to delete push tokens: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return n, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT token, user_id, device_name, push_count, app_opens_total, app_opens_today,
       last_opened_at, last_sent_at, created_at
FROM push_tokens
ORDER BY created_at DESC, token`)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		var (
			d                    Device
			userID, deviceName   sql.NullString
			lastOpened, lastSent sql.NullInt64
			created              int64
		)

		if err := rows.Scan(&d.Token, &userID, &deviceName, &d.PushCount, &d.AppOpensTotal, &d.AppOpensToday,
			&lastOpened, &lastSent, &created); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}

		d.UserID = userID.String
		d.DeviceName = deviceName.String
		d.LastOpenedAt = millisPtr(lastOpened)
		d.LastSentAt = millisPtr(lastSent)
		d.CreatedAt = time.UnixMilli(created).UTC()
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

const statsSQL = `
SELECT
    COUNT(*),
    COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN last_opened_at >= ? THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN last_opened_at >= ? THEN app_opens_today ELSE 0 END), 0),
    COALESCE(SUM(app_opens_total), 0)
FROM push_tokens`

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	start := s.todayStart(s.now())

	var st Stats
	err := s.db.QueryRowContext(ctx, s.rebind(statsSQL), start, start, start).Scan(
		&st.UsersTotal, &st.NewUsersToday, &st.ActiveUsersToday, &st.AppOpensToday, &st.AppOpensAllTime)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute token stats: %w", err)
	}
	return st, nil
}

// Close releases the database handle and, for PostgreSQL, the pool behind it.
func (s *SQLStore) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// todayStart is midnight of now's day in the store's location, in Unix milliseconds.
func (s *SQLStore) todayStart(now time.Time) int64 {
	local := now.In(s.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc).UnixMilli()
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
