package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Store is the key-value + set storage shared by the poller and the notifier.
// Every call is atomic on its own; nothing here needs a multi-key transaction.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	SAdd(ctx context.Context, set, member string) error
	SRem(ctx context.Context, set, member string) error
	SIsMember(ctx context.Context, set, member string) (bool, error)
	SMembers(ctx context.Context, set string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

const (
	keyAuthChats      = "auth_chats"
	keyWatchEnabled   = "wl_enabled"
	keyFearGreedCache = "feargreed_cache"

	quoteCacheTTL     = 300 * time.Second
	fearGreedCacheTTL = 3 * time.Hour
)

func watchlistKey(chatID int64) string     { return fmt.Sprintf("wl_%d", chatID) }
func watchlistInfoKey(chatID int64) string { return fmt.Sprintf("wl_%d_info", chatID) }
func quoteKey(ticker string) string        { return "quote_" + ticker }

// WatchlistInfo is saved the first time a chat's watchlist becomes non-empty.
type WatchlistInfo struct {
	Chat   ChatInfo `json:"chat"`
	Sender Sender   `json:"msg_from"`
}

type ChatInfo struct {
	ID int64 `json:"id"`
}

// Repository wraps a Store with the bot's key conventions.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Repository) Close() error {
	return r.store.Close()
}

func (r *Repository) AddChatAuth(ctx context.Context, chatID int64) error {
	return r.store.SAdd(ctx, keyAuthChats, chatMember(chatID))
}

func (r *Repository) IsChatAuthorized(ctx context.Context, chatID int64) (bool, error) {
	return r.store.SIsMember(ctx, keyAuthChats, chatMember(chatID))
}

func (r *Repository) WatchInfoExists(ctx context.Context, chatID int64) (bool, error) {
	_, ok, err := r.store.Get(ctx, watchlistInfoKey(chatID))
	return ok, err
}

func (r *Repository) SaveWatchInfo(ctx context.Context, chatID int64, info WatchlistInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, watchlistInfoKey(chatID), data)
}

func (r *Repository) AddWatch(ctx context.Context, chatID int64, ticker string) error {
	return r.store.SAdd(ctx, watchlistKey(chatID), ticker)
}

func (r *Repository) DelWatch(ctx context.Context, chatID int64, ticker string) error {
	return r.store.SRem(ctx, watchlistKey(chatID), ticker)
}

// ListWatch returns the chat's tickers sorted. A missing set is an empty list.
func (r *Repository) ListWatch(ctx context.Context, chatID int64) ([]string, error) {
	tickers, err := r.store.SMembers(ctx, watchlistKey(chatID))
	if err != nil {
		return nil, err
	}
	sort.Strings(tickers)
	return tickers, nil
}

// ToggleWatchNotify flips the chat's membership in wl_enabled and reports the
// new state.
func (r *Repository) ToggleWatchNotify(ctx context.Context, chatID int64) (bool, error) {
	member := chatMember(chatID)
	on, err := r.store.SIsMember(ctx, keyWatchEnabled, member)
	if err != nil {
		return false, err
	}
	if on {
		return false, r.store.SRem(ctx, keyWatchEnabled, member)
	}
	return true, r.store.SAdd(ctx, keyWatchEnabled, member)
}

func (r *Repository) DisableWatchNotify(ctx context.Context, chatID int64) error {
	return r.store.SRem(ctx, keyWatchEnabled, chatMember(chatID))
}

// EnabledWatchlists lists chats with notifications on. Members that are not
// chat ids are skipped.
func (r *Repository) EnabledWatchlists(ctx context.Context) ([]int64, error) {
	members, err := r.store.SMembers(ctx, keyWatchEnabled)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Repository) FearGreedCache(ctx context.Context) ([]byte, bool, error) {
	return r.store.Get(ctx, keyFearGreedCache)
}

func (r *Repository) SetFearGreedCache(ctx context.Context, img []byte) error {
	return r.store.SetEx(ctx, keyFearGreedCache, img, fearGreedCacheTTL)
}

// QuoteCache returns the cached quote, or nil when it is absent or expired.
func (r *Repository) QuoteCache(ctx context.Context, ticker string) (*Quote, error) {
	data, ok, err := r.store.Get(ctx, quoteKey(ticker))
	if err != nil || !ok {
		return nil, err
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode quote cache %s: %w", ticker, err)
	}
	return &q, nil
}

func (r *Repository) SetQuoteCache(ctx context.Context, ticker string, q *Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return r.store.SetEx(ctx, quoteKey(ticker), data, quoteCacheTTL)
}

func chatMember(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// expirer is implemented by stores that keep expired rows until swept.
type expirer interface {
	PurgeExpired(ctx context.Context) error
}

// PurgeExpired sweeps expired keys on stores that need it. It reports false
// when the store expires keys on its own.
func (r *Repository) PurgeExpired(ctx context.Context) (bool, error) {
	e, ok := r.store.(expirer)
	if !ok {
		return false, nil
	}
	return true, e.PurgeExpired(ctx)
}
