package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
)

const defaultNotifyRate = 20

// Notifier sends watchlist summaries and unsubscribes chats that can no
// longer receive them.
type Notifier struct {
	repo    *Repository
	quotes  *QuoteService
	msg     Messenger
	limiter *rate.Limiter
}

// NotifyReport counts what one run did.
type NotifyReport struct {
	Chats    int
	Sent     int
	Disabled int
	Skipped  int
}

func NewNotifier(repo *Repository, quotes *QuoteService, msg Messenger, perSecond float64) *Notifier {
	if perSecond <= 0 {
		perSecond = defaultNotifyRate
	}
	return &Notifier{
		repo:    repo,
		quotes:  quotes,
		msg:     msg,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Run notifies target only when it is non-nil, otherwise every chat in
// wl_enabled.
func (n *Notifier) Run(ctx context.Context, target *int64) (NotifyReport, error) {
	var chats []int64
	if target != nil {
		chats = []int64{*target}
	} else {
		var err error
		chats, err = n.repo.EnabledWatchlists(ctx)
		if err != nil {
			return NotifyReport{}, err
		}
	}

	var report NotifyReport
	for _, chatID := range chats {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Chats++
		switch n.notifyChat(ctx, chatID) {
		case notifySent:
			report.Sent++
		case notifyDisabled:
			report.Disabled++
		default:
			report.Skipped++
		}
	}
	return report, nil
}

type notifyOutcome int

const (
	notifySkipped notifyOutcome = iota
	notifySent
	notifyDisabled
)

func (n *Notifier) notifyChat(ctx context.Context, chatID int64) notifyOutcome {
	exists, err := n.msg.ChatExists(ctx, chatID)
	if err != nil {
		slog.Error("notify: chat check failed", "chat", chatID, "err", err)
		return notifySkipped
	}
	if !exists {
		slog.Info("notify: chat vanished, disabling", "chat", chatID)
		n.disable(ctx, chatID)
		return notifyDisabled
	}

	tickers, err := n.repo.ListWatch(ctx, chatID)
	if err != nil {
		slog.Error("notify: list watchlist failed", "chat", chatID, "err", err)
		return notifySkipped
	}
	if len(tickers) == 0 {
		return notifySkipped
	}

	var b strings.Builder
	lines := 0
	for _, t := range tickers {
		q, err := n.quotes.Get(ctx, t)
		if err != nil {
			if !errors.Is(err, ErrNoQuote) {
				slog.Warn("notify: quote failed", "chat", chatID, "ticker", t, "err", err)
			}
			continue
		}
		b.WriteString(formatQuoteShort(t, q))
		lines++
	}
	if lines == 0 {
		slog.Warn("notify: no quotes for watchlist", "chat", chatID, "tickers", len(tickers))
		return notifySkipped
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return notifySkipped
	}
	if _, err := n.msg.SendMessage(ctx, chatID, "```\n"+b.String()+"```"); err != nil {
		slog.Warn("notify: send failed, disabling", "chat", chatID, "err", err)
		n.disable(ctx, chatID)
		return notifyDisabled
	}
	return notifySent
}

func (n *Notifier) disable(ctx context.Context, chatID int64) {
	if err := n.repo.DisableWatchNotify(ctx, chatID); err != nil {
		slog.Error("notify: disable failed", "chat", chatID, "err", err)
	}
}
