package main

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRepositoryWatchlist(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store)

	for _, tk := range []string{"SPY", "AAPL", "QQQ"} {
		if err := repo.AddWatch(ctx, -100, tk); err != nil {
			t.Fatal(err)
		}
	}
	got, err := repo.ListWatch(ctx, -100)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"AAPL", "QQQ", "SPY"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("ListWatch() = %v, want %v", got, want)
		}
	}

	members, _ := store.SMembers(ctx, "wl_-100")
	if len(members) != 3 {
		t.Errorf("wl_-100 has %d members, want 3", len(members))
	}
}

func TestRepositoryWatchInfo(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store)

	info := WatchlistInfo{Chat: ChatInfo{ID: 5}, Sender: Sender{ID: 9, FirstName: "Ann"}}
	if err := repo.SaveWatchInfo(ctx, 5, info); err != nil {
		t.Fatal(err)
	}
	raw, ok, _ := store.Get(ctx, "wl_5_info")
	if !ok {
		t.Fatal("wl_5_info not written")
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["chat"]["id"] != float64(5) || decoded["msg_from"]["first_name"] != "Ann" {
		t.Errorf("wl_5_info = %s", raw)
	}
}

func TestRepositoryEnabledWatchlists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store)

	store.SAdd(ctx, keyWatchEnabled, "20")
	store.SAdd(ctx, keyWatchEnabled, "-3")
	store.SAdd(ctx, keyWatchEnabled, "garbage")

	got, err := repo.EnabledWatchlists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != -3 || got[1] != 20 {
		t.Errorf("EnabledWatchlists() = %v, want [-3 20]", got)
	}
}

func TestRepositoryQuoteCache(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())

	if q, err := repo.QuoteCache(ctx, "SPY"); q != nil || err != nil {
		t.Errorf("QuoteCache(miss) = %v, %v", q, err)
	}
	pe := 20.5
	in := testQuote(110, 100, 120)
	in.PEForward = &pe
	if err := repo.SetQuoteCache(ctx, "SPY", in); err != nil {
		t.Fatal(err)
	}
	q, err := repo.QuoteCache(ctx, "SPY")
	if err != nil || q == nil {
		t.Fatalf("QuoteCache() = %v, %v", q, err)
	}
	if q.LatestPrice != 110 || q.PEForward == nil || *q.PEForward != 20.5 || q.PETrailing != nil {
		t.Errorf("QuoteCache() = %+v", q)
	}
}
