package main

import (
	"context"
	"log/slog"
	"sort"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	purgeInterval = 10 * time.Minute
	shutdownGrace = 30 * time.Second
)

// Bot owns the poll loop and everything handlers need.
type Bot struct {
	cfg        Config
	repo       *Repository
	msg        Messenger
	auth       *AuthGate
	quotes     *QuoteService
	notifier   *Notifier
	charts     ChartRenderer
	shots      Screenshotter
	antiflood  *Antiflood
	dispatcher *Dispatcher
	routes     map[Command]Handler
}

// Deps are the collaborators a Bot is built from.
type Deps struct {
	Repo     *Repository
	Msg      Messenger
	Provider QuoteProvider
	Charts   ChartRenderer
	Shots    Screenshotter
}

func NewBot(cfg Config, deps Deps) *Bot {
	quotes := NewQuoteService(deps.Repo, deps.Provider)
	b := &Bot{
		cfg:        cfg,
		repo:       deps.Repo,
		msg:        deps.Msg,
		auth:       NewAuthGate(cfg.Password, deps.Repo),
		quotes:     quotes,
		notifier:   NewNotifier(deps.Repo, quotes, deps.Msg, cfg.NotifyRate),
		charts:     deps.Charts,
		shots:      deps.Shots,
		antiflood:  NewAntiflood(cfg.AntifloodWindow),
		dispatcher: NewDispatcher(cfg.HandlerTimeout),
	}
	b.routes = b.handlers()
	return b
}

// botCommands is the list shown in Telegram's command menu.
func botCommands(authEnabled bool) []tgbotapi.BotCommand {
	cmds := []tgbotapi.BotCommand{
		{Command: "help", Description: "Show help"},
	}
	if authEnabled {
		cmds = append(cmds, tgbotapi.BotCommand{Command: "auth", Description: "Authorize this chat"})
	}
	return append(cmds,
		tgbotapi.BotCommand{Command: "quote", Description: "Get a quote"},
		tgbotapi.BotCommand{Command: "chart", Description: "Price and volume chart"},
		tgbotapi.BotCommand{Command: "watch", Description: "List, add or remove watchlist symbols"},
		tgbotapi.BotCommand{Command: "watchlist", Description: "Watchlist overview"},
		tgbotapi.BotCommand{Command: "watchlistnotify", Description: "Toggle watchlist notifications"},
		tgbotapi.BotCommand{Command: "overview", Description: "Global ETFs overview"},
		tgbotapi.BotCommand{Command: "feargreed", Description: "Fear & Greed Index"},
	)
}

func (b *Bot) registerCommands() {
	if err := b.msg.Prepare(botCommands(b.auth.Enabled())); err != nil {
		slog.Error("TG register commands failed", "err", err)
	}
}

// Run polls until ctx is cancelled, then waits a bounded time for running
// handlers.
func (b *Bot) Run(ctx context.Context) {
	b.registerCommands()
	go b.purgeLoop(ctx)

	cursor := 0
	for ctx.Err() == nil {
		updates, err := b.msg.GetUpdates(ctx, cursor, b.cfg.PollLimit, int(b.cfg.PollTimeout/time.Second))
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Error("TG getUpdates failed", "err", err, "retry_in", b.cfg.PollBackoff)
			select {
			case <-ctx.Done():
			case <-time.After(b.cfg.PollBackoff):
			}
			continue
		}
		cursor = b.process(ctx, cursor, updates)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := b.dispatcher.Wait(waitCtx); err != nil {
		slog.Warn("handlers still running at shutdown", "err", err)
	}
	st := b.dispatcher.Stats()
	slog.Info("poller stopped", "cursor", cursor, "dispatched", st.Dispatched, "finished", st.Finished, "panicked", st.Panicked)
}

// process handles one batch in update_id order and returns the next cursor.
// The cursor moves past every update seen, whatever happens to it.
func (b *Bot) process(ctx context.Context, cursor int, updates []tgbotapi.Update) int {
	sort.Slice(updates, func(i, j int) bool { return updates[i].UpdateID < updates[j].UpdateID })
	for _, raw := range updates {
		if next := raw.UpdateID + 1; next > cursor {
			cursor = next
		}
		upd, err := parseUpdate(raw)
		if err != nil {
			slog.Error("TG update skipped", "update_id", raw.UpdateID, "err", err)
			continue
		}
		b.handleUpdate(ctx, upd)
	}
	return cursor
}

func (b *Bot) handleUpdate(ctx context.Context, upd Update) {
	slog.Debug("TG message", "update_id", upd.ID, "chat", upd.ChatID, "from", upd.Sender.ID, "text", upd.Text)

	if b.antiflood.Check(upd.Sender.ID, upd.Date) {
		slog.Warn("antiflood hit", "from", upd.Sender.ID, "chat", upd.ChatID)
		return
	}

	authorized := b.auth.Authorized(ctx, upd.ChatID)
	if !authorized {
		slog.Warn("message from unauthorized chat", "chat", upd.ChatID, "from", upd.Sender.ID, "text", upd.Text)
	}

	cmd, args, decision := route(b.auth.Enabled(), authorized, upd.Text)
	switch decision {
	case DecisionUnauthorized:
		b.replyStatus(ctx, upd.ChatID, replyUnauthorized)
	case DecisionDispatch:
		h, ok := b.routes[cmd]
		if !ok {
			slog.Error("no handler for command", "cmd", cmd)
			return
		}
		b.dispatcher.Dispatch(ctx, cmd, h, upd, args)
	}
}

// purgeLoop sweeps expired keys on SQL stores.
func (b *Bot) purgeLoop(ctx context.Context) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			swept, err := b.repo.PurgeExpired(ctx)
			if err != nil {
				slog.Error("purge expired keys failed", "err", err)
				continue
			}
			if !swept {
				return
			}
		}
	}
}
