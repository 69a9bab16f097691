package main

import (
	"fmt"
	"math"
	"strings"
)

const (
	emojiGreen    = "\U0001F7E2"
	emojiRed      = "\U0001F534"
	emojiRocket   = "\U0001F680"
	emojiChartDn  = "\U0001F4C9"
	emojiWarning  = "❗"
	maxHighAlerts = 10
)

var tickerEmoji = map[string]string{
	"SPY":     "\U0001F1FA\U0001F1F8",
	"QQQ":     "\U0001F4BB",
	"MCHI":    "\U0001F1E8\U0001F1F3",
	"FEZ":     "\U0001F1EA\U0001F1FA",
	"BTC-USD": "₿ ",
	"GC=F":    "\U0001F947",
	"VNQ":     "\U0001F3E0",
	"^TNX":    "\U0001F4B5",
}

func decorateTicker(ticker string) string {
	return tickerEmoji[ticker] + ticker
}

func signColor(sign string) string {
	if sign == "+" {
		return emojiGreen
	}
	return emojiRed
}

// moveEmoji flags daily moves above one percent.
func moveEmoji(sign string, change float64) string {
	if change <= 1 {
		return ""
	}
	if sign == "-" {
		return emojiChartDn
	}
	return emojiRocket
}

// highAlerts is one warning sign per ten percent below the 52 week high.
func highAlerts(change float64) string {
	if math.IsInf(change, 0) || math.IsNaN(change) {
		return ""
	}
	n := int(change / 10)
	if n > maxHighAlerts {
		n = maxHighAlerts
	}
	return strings.Repeat(emojiWarning, n)
}

func formatPercent(change float64) string {
	if math.IsInf(change, 0) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", change)
}

func formatOptional(v *float64, suffix string, scale float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%s", *v*scale, suffix)
}

// formatQuoteLong renders the /quote reply, a pre block ready to send.
func formatQuoteLong(ticker string, q *Quote) string {
	priceSign := changeSign(q.LatestPrice, q.PreviousClose)
	priceChg := percentChange(q.LatestPrice, q.PreviousClose)
	highSign := changeSign(q.LatestPrice, q.High52w)
	highChg := percentChange(q.LatestPrice, q.High52w)
	lowSign := changeSign(q.LatestPrice, q.Low52w)
	lowChg := percentChange(q.LatestPrice, q.Low52w)

	var b strings.Builder
	b.WriteString("```\n")
	fmt.Fprintf(&b, "%s\n", escapeCode(q.CompanyName))
	fmt.Fprintf(&b, "%s%s %.2f (%s%s%%%s)\n",
		signColor(priceSign), ticker, q.LatestPrice, priceSign, formatPercent(priceChg), moveEmoji(priceSign, priceChg))
	b.WriteString(strings.Repeat("-", len(ticker)) + "\n")
	fmt.Fprintf(&b, "52w high %.2f (%s%s%%%s)\n", q.High52w, highSign, formatPercent(highChg), highAlerts(highChg))
	fmt.Fprintf(&b, "52w low %.2f (%s%s%%)\n", q.Low52w, lowSign, formatPercent(lowChg))
	fmt.Fprintf(&b, "volume %s\n", q.MarketVolume)
	fmt.Fprintf(&b, "volume average %s\n", q.MarketVolumeAvg)
	fmt.Fprintf(&b, "PE ratio %s\n", formatOptional(q.PETrailing, "", 1))
	fmt.Fprintf(&b, "PE ratio forward %s\n", formatOptional(q.PEForward, "", 1))
	fmt.Fprintf(&b, "Dividend yield %s\n", formatOptional(q.DivYield, "%", 100))
	b.WriteString("\n```")
	return b.String()
}

// formatQuoteShort is one watchlist or overview line, newline terminated.
func formatQuoteShort(ticker string, q *Quote) string {
	priceSign := changeSign(q.LatestPrice, q.PreviousClose)
	priceChg := percentChange(q.LatestPrice, q.PreviousClose)
	highSign := changeSign(q.LatestPrice, q.High52w)
	highChg := percentChange(q.LatestPrice, q.High52w)

	return fmt.Sprintf("%s%s %.2f (%s%s%%%s 52w high chg %s%s%%%s)\n",
		signColor(priceSign), decorateTicker(ticker), q.LatestPrice,
		priceSign, formatPercent(priceChg), moveEmoji(priceSign, priceChg),
		highSign, formatPercent(highChg), highAlerts(highChg))
}

// formatSection is an overview section header.
func formatSection(name string) string {
	if name == "" {
		return "-----\n"
	}
	return "----- " + name + "\n"
}

type helpEntry struct {
	cmd  string
	args []string
	desc string
	auth bool
}

var helpEntries = []helpEntry{
	{cmd: "/help", desc: "show this help message"},
	{cmd: "/auth", args: []string{"<password>"}, desc: "authorize chat to use this bot if password is correct", auth: true},
	{cmd: "/quote", args: []string{"<symbol>"}, desc: "get quote"},
	{cmd: "/chart", args: []string{"<symbol> [1y,6m,5d]"}, desc: "get price and volume chart"},
	{cmd: "/watch", args: []string{"list|add|del", "[symbol]"}, desc: "list, add or remove symbol from your watchlist"},
	{cmd: "/watchlist", desc: "get an overview of your watchlist"},
	{cmd: "/watchlistnotify", desc: "toggle the automatic watchlist notifications on and off"},
	{cmd: "/overview", desc: "get an overview of global ETFs"},
	{cmd: "/feargreed", desc: "get picture of CNN's Fear & Greed Index"},
}

const helpFooter = "_Powered by [Tickergram](https://github.com/a0rtega/tickergram-bot)_"

// formatHelp renders the command list as MarkdownV2 with bold arguments.
func formatHelp(authEnabled bool) string {
	var b strings.Builder
	for _, e := range helpEntries {
		if e.auth && !authEnabled {
			continue
		}
		b.WriteString(e.cmd)
		for _, a := range e.args {
			b.WriteString(" *" + escapeMarkdownV2(a) + "*")
		}
		b.WriteString(" " + escapeMarkdownV2(e.desc) + "\n")
	}
	b.WriteString("\n" + helpFooter)
	return b.String()
}
