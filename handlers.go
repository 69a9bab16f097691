package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	maxWatchlistSize  = 50
	defaultChartRange = "1Y"

	replyUnauthorized   = "Unauthorized"
	replyProcessing     = "Processing, please wait ..."
	replyInvalidTicker  = "Invalid ticker"
	replyInvalidPwd     = "Invalid password"
	replyQuoteError     = "Error getting ticker info"
	replyError          = "Error"
	replyWatchLimit     = "Watchlist maximum limit hit"
	replyInvalidWatch   = "Invalid watch command"
	replyEmptyWatchlist = "Your watchlist is empty"
)

// overviewTickers lists the /overview rows. Entries starting with # are
// section headers.
var overviewTickers = []string{
	"#Stocks ETFs", "SPY", "QQQ", "FEZ", "MCHI", "VNQ",
	"#10Y Bonds", "^TNX",
	"#Gold", "GC=F",
	"#Crypto", "BTC-USD",
}

func (b *Bot) handlers() map[Command]Handler {
	return map[Command]Handler{
		CmdHelp:            b.handleHelp,
		CmdAuth:            b.handleAuth,
		CmdQuote:           b.handleQuote,
		CmdChart:           b.handleChart,
		CmdWatch:           b.handleWatch,
		CmdWatchlist:       b.handleWatchlist,
		CmdWatchlistNotify: b.handleWatchlistNotify,
		CmdOverview:        b.handleOverview,
		CmdFearGreed:       b.handleFearGreed,
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.msg.SendMessage(ctx, chatID, text); err != nil {
		slog.Error("send failed", "chat", chatID, "err", err)
	}
}

func (b *Bot) replyStatus(ctx context.Context, chatID int64, text string) {
	b.reply(ctx, chatID, codeBlock(text))
}

// processing shows the wait notice and returns a func that removes it.
func (b *Bot) processing(ctx context.Context, chatID int64) func() {
	m, err := b.msg.SendMessage(ctx, chatID, codeBlock(replyProcessing))
	if err != nil {
		slog.Error("send processing notice failed", "chat", chatID, "err", err)
		return func() {}
	}
	return func() {
		if err := b.msg.DeleteMessage(ctx, chatID, m.MessageID); err != nil {
			slog.Warn("delete processing notice failed", "chat", chatID, "err", err)
		}
	}
}

func (b *Bot) handleHelp(ctx context.Context, upd Update, _ string) {
	b.reply(ctx, upd.ChatID, formatHelp(b.auth.Enabled()))
}

func (b *Bot) handleAuth(ctx context.Context, upd Update, password string) {
	ok, err := b.auth.Grant(ctx, upd.ChatID, password)
	if err != nil {
		slog.Error("auth grant failed", "chat", upd.ChatID, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
		return
	}
	if !ok {
		slog.Warn("invalid auth password", "chat", upd.ChatID, "sender", upd.Sender.ID)
		b.replyStatus(ctx, upd.ChatID, replyInvalidPwd)
		return
	}
	slog.Info("chat authorized", "chat", upd.ChatID, "sender", upd.Sender.ID)
	b.replyStatus(ctx, upd.ChatID, "Chat access granted, welcome "+upd.Sender.FirstName)
}

func (b *Bot) handleQuote(ctx context.Context, upd Update, args string) {
	ticker := strings.ToUpper(args)
	if !validTicker(ticker) {
		b.replyStatus(ctx, upd.ChatID, replyInvalidTicker)
		return
	}

	done := b.processing(ctx, upd.ChatID)
	text := codeBlock(replyQuoteError)
	q, err := b.quotes.Get(ctx, ticker)
	if err != nil {
		logQuoteErr(ticker, err)
	} else {
		text = formatQuoteLong(ticker, q)
	}
	done()
	b.reply(ctx, upd.ChatID, text)
}

func (b *Bot) handleChart(ctx context.Context, upd Update, args string) {
	parts := strings.Split(args, " ")
	ticker := strings.ToUpper(parts[0])
	rangeLabel := defaultChartRange
	if len(parts) > 1 {
		rangeLabel = strings.ToUpper(parts[1])
	}

	if !validTicker(ticker) {
		b.replyStatus(ctx, upd.ChatID, replyInvalidTicker)
		return
	}
	lookback, err := parseChartRange(rangeLabel)
	switch {
	case errors.Is(err, errRangeLimit):
		b.replyStatus(ctx, upd.ChatID, "Chart time range exceeds the limit")
		return
	case err != nil:
		b.replyStatus(ctx, upd.ChatID, "Invalid time range")
		return
	}

	done := b.processing(ctx, upd.ChatID)
	defer done()

	img, err := b.renderChart(ctx, ticker, rangeLabel, lookback)
	if err == nil {
		err = b.msg.SendPhoto(ctx, upd.ChatID, ticker+".png", img)
	}
	if err != nil {
		slog.Error("chart failed", "ticker", ticker, "range", rangeLabel, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
	}
}

func (b *Bot) renderChart(ctx context.Context, ticker, rangeLabel string, lookback time.Duration) ([]byte, error) {
	candles, err := b.quotes.History(ctx, ticker, lookback)
	if err != nil {
		return nil, err
	}
	return b.charts.Render(ticker, rangeLabel, candles)
}

func (b *Bot) handleWatch(ctx context.Context, upd Update, args string) {
	cmd := strings.Split(args, " ")
	switch {
	case cmd[0] == "list":
		b.watchList(ctx, upd)
	case cmd[0] == "add" && len(cmd) == 2:
		b.watchAdd(ctx, upd, strings.ToUpper(cmd[1]))
	case cmd[0] == "del" && len(cmd) == 2:
		b.watchDel(ctx, upd, strings.ToUpper(cmd[1]))
	default:
		b.replyStatus(ctx, upd.ChatID, replyInvalidWatch)
	}
}

func (b *Bot) watchList(ctx context.Context, upd Update) {
	tickers, err := b.repo.ListWatch(ctx, upd.ChatID)
	if err != nil {
		slog.Error("list watchlist failed", "chat", upd.ChatID, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
		return
	}
	list := "empty"
	if len(tickers) > 0 {
		list = strings.Join(tickers, ", ")
	}
	b.replyStatus(ctx, upd.ChatID, "Your watchlist is "+list)
}

func (b *Bot) watchAdd(ctx context.Context, upd Update, ticker string) {
	tickers, err := b.repo.ListWatch(ctx, upd.ChatID)
	if err != nil {
		slog.Error("list watchlist failed", "chat", upd.ChatID, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
		return
	}
	if len(tickers) >= maxWatchlistSize {
		b.replyStatus(ctx, upd.ChatID, replyWatchLimit)
		return
	}
	if !validTicker(ticker) {
		b.replyStatus(ctx, upd.ChatID, replyInvalidTicker)
		return
	}

	done := b.processing(ctx, upd.ChatID)
	text := replyQuoteError
	if _, err := b.quotes.Get(ctx, ticker); err != nil {
		logQuoteErr(ticker, err)
	} else if err := b.addWatch(ctx, upd, ticker); err != nil {
		slog.Error("watch add failed", "chat", upd.ChatID, "ticker", ticker, "err", err)
		text = replyError
	} else {
		text = ticker + " added to your watchlist"
	}
	done()
	b.replyStatus(ctx, upd.ChatID, text)
}

func (b *Bot) addWatch(ctx context.Context, upd Update, ticker string) error {
	exists, err := b.repo.WatchInfoExists(ctx, upd.ChatID)
	if err != nil {
		return err
	}
	if !exists {
		info := WatchlistInfo{Chat: ChatInfo{ID: upd.ChatID}, Sender: upd.Sender}
		if err := b.repo.SaveWatchInfo(ctx, upd.ChatID, info); err != nil {
			return err
		}
	}
	return b.repo.AddWatch(ctx, upd.ChatID, ticker)
}

func (b *Bot) watchDel(ctx context.Context, upd Update, ticker string) {
	if !validTicker(ticker) {
		b.replyStatus(ctx, upd.ChatID, replyInvalidTicker)
		return
	}
	if err := b.repo.DelWatch(ctx, upd.ChatID, ticker); err != nil {
		slog.Error("watch del failed", "chat", upd.ChatID, "ticker", ticker, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
		return
	}
	b.replyStatus(ctx, upd.ChatID, ticker+" removed from your watchlist")
}

func (b *Bot) handleWatchlist(ctx context.Context, upd Update, _ string) {
	done := b.processing(ctx, upd.ChatID)
	defer done()

	tickers, err := b.repo.ListWatch(ctx, upd.ChatID)
	if err != nil {
		slog.Error("list watchlist failed", "chat", upd.ChatID, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
		return
	}
	if len(tickers) == 0 {
		b.replyStatus(ctx, upd.ChatID, replyEmptyWatchlist)
		return
	}
	chatID := upd.ChatID
	report, err := b.notifier.Run(ctx, &chatID)
	if err != nil {
		slog.Error("watchlist run failed", "chat", upd.ChatID, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
		return
	}
	// A skipped chat got nothing, a disabled one cannot be reached.
	if report.Sent == 0 && report.Disabled == 0 {
		b.replyStatus(ctx, upd.ChatID, replyQuoteError)
		return
	}
	slog.Debug("watchlist sent", "chat", upd.ChatID, "sent", report.Sent)
}

func (b *Bot) handleWatchlistNotify(ctx context.Context, upd Update, _ string) {
	on, err := b.repo.ToggleWatchNotify(ctx, upd.ChatID)
	if err != nil {
		slog.Error("toggle notify failed", "chat", upd.ChatID, "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
		return
	}
	state := "disabled"
	if on {
		state = "enabled"
	}
	b.replyStatus(ctx, upd.ChatID, "Watchlist notifications are now "+state)
}

func (b *Bot) handleOverview(ctx context.Context, upd Update, _ string) {
	done := b.processing(ctx, upd.ChatID)
	text, err := b.overview(ctx)
	if err != nil {
		slog.Error("overview failed", "err", err)
		text = codeBlock(replyError)
	}
	b.reply(ctx, upd.ChatID, text)
	done()
}

func (b *Bot) overview(ctx context.Context) (string, error) {
	var sb strings.Builder
	sb.WriteString("```\n")
	for _, t := range overviewTickers {
		if section, ok := strings.CutPrefix(t, "#"); ok {
			sb.WriteString(formatSection(section))
			continue
		}
		q, err := b.quotes.Get(ctx, t)
		if err != nil {
			return "", err
		}
		sb.WriteString(formatQuoteShort(t, q))
	}
	sb.WriteString("```")
	return sb.String(), nil
}

func (b *Bot) handleFearGreed(ctx context.Context, upd Update, _ string) {
	done := b.processing(ctx, upd.ChatID)
	defer done()

	img, err := b.fearGreed(ctx)
	if err == nil {
		err = b.msg.SendPhoto(ctx, upd.ChatID, "feargreed.png", img)
	}
	if err != nil {
		slog.Error("feargreed failed", "err", err)
		b.replyStatus(ctx, upd.ChatID, replyError)
	}
}

// fearGreed serves the cached index image, capturing a new one on a miss.
func (b *Bot) fearGreed(ctx context.Context) ([]byte, error) {
	img, ok, err := b.repo.FearGreedCache(ctx)
	if err != nil {
		slog.Warn("feargreed cache read failed", "err", err)
	}
	if ok && len(img) > 0 {
		return img, nil
	}
	img, err = b.shots.Screenshot(ctx, b.cfg.FearGreedURL, fearGreedWidth, fearGreedHeight)
	if err != nil {
		return nil, err
	}
	if err := b.repo.SetFearGreedCache(ctx, img); err != nil {
		slog.Warn("feargreed cache write failed", "err", err)
	}
	return img, nil
}

func logQuoteErr(ticker string, err error) {
	if errors.Is(err, ErrNoQuote) {
		slog.Info("no quote", "ticker", ticker)
		return
	}
	slog.Error("quote lookup failed", "ticker", ticker, "err", err)
}
