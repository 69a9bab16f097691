package main

import "strings"

type Command string

const (
	CmdNone            Command = ""
	CmdHelp            Command = "help"
	CmdAuth            Command = "auth"
	CmdQuote           Command = "quote"
	CmdChart           Command = "chart"
	CmdWatch           Command = "watch"
	CmdWatchlist       Command = "watchlist"
	CmdWatchlistNotify Command = "watchlistnotify"
	CmdOverview        Command = "overview"
	CmdFearGreed       Command = "feargreed"
)

type Decision int

const (
	DecisionIgnore Decision = iota
	DecisionDispatch
	DecisionUnauthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionDispatch:
		return "dispatch"
	case DecisionUnauthorized:
		return "unauthorized"
	default:
		return "ignore"
	}
}

var guardedCommands = map[string]bool{
	"/quote":           true,
	"/chart":           true,
	"/watch":           true,
	"/watchlist":       true,
	"/watchlistnotify": true,
	"/overview":        true,
	"/feargreed":       true,
}

// prefix commands take arguments after a single space
var prefixCommands = []struct {
	prefix string
	cmd    Command
}{
	{"/quote ", CmdQuote},
	{"/chart ", CmdChart},
	{"/watch ", CmdWatch},
}

var exactCommands = map[string]Command{
	"/watchlist":       CmdWatchlist,
	"/watchlistnotify": CmdWatchlistNotify,
	"/overview":        CmdOverview,
	"/feargreed":       CmdFearGreed,
}

// route maps message text to a command. args is the text after the command
// prefix, untrimmed.
func route(authEnabled, authorized bool, text string) (Command, string, Decision) {
	if text == "/help" || text == "/start" {
		return CmdHelp, "", DecisionDispatch
	}
	if authEnabled && strings.HasPrefix(text, "/auth ") {
		return CmdAuth, strings.TrimPrefix(text, "/auth "), DecisionDispatch
	}

	first, _, _ := strings.Cut(text, " ")
	if !authorized {
		if guardedCommands[first] {
			return CmdNone, "", DecisionUnauthorized
		}
		return CmdNone, "", DecisionIgnore
	}

	for _, p := range prefixCommands {
		if strings.HasPrefix(text, p.prefix) {
			return p.cmd, strings.TrimPrefix(text, p.prefix), DecisionDispatch
		}
	}
	if cmd, ok := exactCommands[text]; ok {
		return cmd, "", DecisionDispatch
	}
	return CmdNone, "", DecisionIgnore
}
