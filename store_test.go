package main

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newMiniredisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatal(err)
	}
	s := NewRedisStore(RedisOptions{Host: mr.Host(), Port: port})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storeBackends(t *testing.T) map[string]Store {
	redis, _ := newMiniredisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redis,
		"sqlite": newTestSQLiteStore(t),
	}
}

func TestStoreKeyValue(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Ping(ctx); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
				t.Errorf("Get(missing) = %v, %v, want false, nil", ok, err)
			}
			if err := s.Set(ctx, "k", []byte("v1")); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, "k", []byte("v2")); err != nil {
				t.Fatal(err)
			}
			got, ok, err := s.Get(ctx, "k")
			if err != nil || !ok || string(got) != "v2" {
				t.Errorf("Get(k) = %q, %v, %v, want v2", got, ok, err)
			}
			if err := s.SetEx(ctx, "ttl", []byte("x"), time.Hour); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := s.Get(ctx, "ttl"); !ok {
				t.Error("Get(ttl) missing before expiry")
			}
		})
	}
}

func TestStoreSets(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			members, err := s.SMembers(ctx, "empty")
			if err != nil || len(members) != 0 {
				t.Errorf("SMembers(empty) = %v, %v", members, err)
			}
			for _, m := range []string{"b", "a", "b"} {
				if err := s.SAdd(ctx, "set", m); err != nil {
					t.Fatal(err)
				}
			}
			members, _ = s.SMembers(ctx, "set")
			sort.Strings(members)
			if len(members) != 2 || members[0] != "a" || members[1] != "b" {
				t.Errorf("SMembers(set) = %v, want [a b]", members)
			}
			if ok, _ := s.SIsMember(ctx, "set", "a"); !ok {
				t.Error("SIsMember(a) = false")
			}
			if err := s.SRem(ctx, "set", "a"); err != nil {
				t.Fatal(err)
			}
			if err := s.SRem(ctx, "set", "zzz"); err != nil {
				t.Errorf("SRem(missing) error = %v", err)
			}
			if ok, _ := s.SIsMember(ctx, "set", "a"); ok {
				t.Error("SIsMember(a) = true after SRem")
			}
		})
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)
	if err := s.SetEx(ctx, "quote_SPY", []byte("{}"), quoteCacheTTL); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(quoteCacheTTL + time.Second)
	if _, ok, err := s.Get(ctx, "quote_SPY"); ok || err != nil {
		t.Errorf("Get() after TTL = %v, %v, want false, nil", ok, err)
	}
}

func TestSQLStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t).(*sqlStore)
	now := time.Now()
	s.now = func() time.Time { return now }

	if err := s.SetEx(ctx, "feargreed_cache", []byte("png"), fearGreedCacheTTL); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "forever", []byte("x")); err != nil {
		t.Fatal(err)
	}

	now = now.Add(fearGreedCacheTTL + time.Second)
	if _, ok, _ := s.Get(ctx, "feargreed_cache"); ok {
		t.Error("Get() returned an expired row")
	}
	if err := s.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	var n int
	if err := s.db.QueryRow("SELECT count(*) FROM kv").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows after purge = %d, want 1", n)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SetEx(ctx, "k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("Get() returned an expired key")
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	s.Set(ctx, "k", buf)
	buf[0] = 'x'
	got, _, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Get() = %q, want abc", got)
	}
}

func TestSQLBind(t *testing.T) {
	pg := &sqlStore{driver: "postgres"}
	if got := pg.bind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("bind(postgres) = %q", got)
	}
	lite := &sqlStore{driver: "sqlite3"}
	if got := lite.bind("a = ?"); got != "a = ?" {
		t.Errorf("bind(sqlite3) = %q", got)
	}
}

func TestRepositoryPurgeExpired(t *testing.T) {
	ctx := context.Background()
	if swept, err := NewRepository(NewMemoryStore()).PurgeExpired(ctx); swept || err != nil {
		t.Errorf("memory PurgeExpired() = %v, %v, want false, nil", swept, err)
	}
	if swept, err := NewRepository(newTestSQLiteStore(t)).PurgeExpired(ctx); !swept || err != nil {
		t.Errorf("sqlite PurgeExpired() = %v, %v, want true, nil", swept, err)
	}
}
