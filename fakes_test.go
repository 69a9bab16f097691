package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	deleted  []int
	photos   []string
	offsets  []int
	polls    []pollResult
	prepared [][]tgbotapi.BotCommand

	sendErr   error
	existsErr error
	vanished  map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{vanished: make(map[int64]bool)}
}

func (f *fakeMessenger) GetUpdates(ctx context.Context, offset, limit, timeout int) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.polls) > 0 {
		r := f.polls[0]
		f.polls = f.polls[1:]
		f.mu.Unlock()
		return r.updates, r.err
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, _ int64, name string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, name)
	return nil
}

func (f *fakeMessenger) ChatExists(_ context.Context, chatID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return !f.vanished[chatID], nil
}

func (f *fakeMessenger) Prepare(commands []tgbotapi.BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepared = append(f.prepared, commands)
	return nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func (f *fakeMessenger) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeProvider struct {
	mu         sync.Mutex
	quotes     map[string]*Quote
	candles    []Candle
	historyErr error
	quoteCalls int
}

func (p *fakeProvider) Quote(_ context.Context, ticker string) (*Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quoteCalls++
	q, ok := p.quotes[ticker]
	if !ok {
		return nil, ErrNoQuote
	}
	cp := *q
	return &cp, nil
}

func (p *fakeProvider) History(context.Context, string, time.Duration) ([]Candle, error) {
	return p.candles, p.historyErr
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quoteCalls
}

type fakeCharts struct{}

func (fakeCharts) Render(string, string, []Candle) ([]byte, error) {
	return []byte("png"), nil
}

type fakeShots struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeShots) Screenshot(context.Context, string, int, int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("screenshot"), nil
}

var errSend = errors.New("forbidden: bot was blocked by the user")

func testQuote(price, prev, high float64) *Quote {
	return &Quote{
		CompanyName:     "Test Corp",
		LatestPrice:     price,
		PreviousClose:   prev,
		High52w:         high,
		Low52w:          prev / 2,
		MarketVolume:    "1,000",
		MarketVolumeAvg: "2,000",
	}
}

type testBot struct {
	*Bot
	store    Store
	tg       *fakeMessenger
	provider *fakeProvider
	screens  *fakeShots
}

func newTestBot(t *testing.T, password string) *testBot {
	t.Helper()
	return newTestBotWithStore(t, password, NewMemoryStore())
}

func newTestBotWithStore(t *testing.T, password string, store Store) *testBot {
	t.Helper()
	msg := newFakeMessenger()
	provider := &fakeProvider{quotes: map[string]*Quote{
		"SPY": testQuote(110, 100, 120),
		"QQQ": testQuote(90, 100, 100),
	}}
	shots := &fakeShots{}
	bot := NewBot(Config{
		Password:     password,
		PollLimit:    1,
		PollTimeout:  time.Second,
		PollBackoff:  10 * time.Millisecond,
		FearGreedURL: defaultFearGreedURL,
		NotifyRate:   1000,
	}, Deps{
		Repo:     NewRepository(store),
		Msg:      msg,
		Provider: provider,
		Charts:   fakeCharts{},
		Shots:    shots,
	})
	return &testBot{Bot: bot, store: store, tg: msg, provider: provider, screens: shots}
}

func (tb *testBot) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tb.dispatcher.Wait(ctx); err != nil {
		t.Fatalf("handlers did not finish: %v", err)
	}
}

func tgMessage(id int, chatID, fromID int64, date int, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: fromID, FirstName: "Ann"},
			Date:      date,
			Text:      text,
		},
	}
}

func textUpdate(chatID int64, text string) Update {
	return Update{ID: 1, ChatID: chatID, Sender: Sender{ID: chatID, FirstName: "Ann"}, Text: text, Date: 1}
}
