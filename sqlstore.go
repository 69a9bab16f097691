package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// sqlStore implements Store on top of the kv and set_members tables.
// expires_at is unix milliseconds; 0 means no expiry. Expired rows read as
// missing and are removed by PurgeExpired.
type sqlStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if _, err := runMigrations(db, "sqlite3"); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlStore{db: db, driver: "sqlite3", now: time.Now}, nil
}

func NewPostgresStore(dsn string) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := runMigrations(db, "postgres"); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlStore{db: db, driver: "postgres", now: time.Now}, nil
}

// bind rewrites ? placeholders to $n for postgres.
func (s *sqlStore) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, s.bind("SELECT value, expires_at FROM kv WHERE key = ?"), key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	if expiresAt > 0 && expiresAt <= s.now().UnixMilli() {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, 0)
}

func (s *sqlStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("kv setex %s: invalid ttl %s", key, ttl)
	}
	return s.put(ctx, key, value, s.now().Add(ttl).UnixMilli())
}

func (s *sqlStore) put(ctx context.Context, key string, value []byte, expiresAt int64) error {
	_, err := s.db.ExecContext(ctx, s.bind(
		"INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?) "+
			"ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at"),
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *sqlStore) SAdd(ctx context.Context, set, member string) error {
	_, err := s.db.ExecContext(ctx, s.bind(
		"INSERT INTO set_members (set_key, member) VALUES (?, ?) ON CONFLICT DO NOTHING"), set, member)
	if err != nil {
		return fmt.Errorf("sadd %s: %w", set, err)
	}
	return nil
}

func (s *sqlStore) SRem(ctx context.Context, set, member string) error {
	_, err := s.db.ExecContext(ctx, s.bind("DELETE FROM set_members WHERE set_key = ? AND member = ?"), set, member)
	if err != nil {
		return fmt.Errorf("srem %s: %w", set, err)
	}
	return nil
}

func (s *sqlStore) SIsMember(ctx context.Context, set, member string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.bind("SELECT count(*) FROM set_members WHERE set_key = ? AND member = ?"), set, member).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", set, err)
	}
	return n > 0, nil
}

func (s *sqlStore) SMembers(ctx context.Context, set string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.bind("SELECT member FROM set_members WHERE set_key = ?"), set)
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", set, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// PurgeExpired deletes rows whose TTL has passed.
func (s *sqlStore) PurgeExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.bind("DELETE FROM kv WHERE expires_at > 0 AND expires_at <= ?"), s.now().UnixMilli())
	return err
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
