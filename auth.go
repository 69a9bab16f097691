package main

import (
	"context"
	"log/slog"
)

// AuthGate guards commands behind a shared password. With an empty password
// every chat is authorized.
type AuthGate struct {
	password string
	repo     *Repository
}

func NewAuthGate(password string, repo *Repository) *AuthGate {
	return &AuthGate{password: password, repo: repo}
}

func (g *AuthGate) Enabled() bool {
	return g.password != ""
}

// Authorized treats a store failure as not authorized.
func (g *AuthGate) Authorized(ctx context.Context, chatID int64) bool {
	if !g.Enabled() {
		return true
	}
	ok, err := g.repo.IsChatAuthorized(ctx, chatID)
	if err != nil {
		slog.Error("auth check failed", "chat", chatID, "err", err)
		return false
	}
	return ok
}

// Grant authorizes the chat permanently if password matches.
func (g *AuthGate) Grant(ctx context.Context, chatID int64, password string) (bool, error) {
	if !g.Enabled() || password != g.password {
		return false, nil
	}
	if err := g.repo.AddChatAuth(ctx, chatID); err != nil {
		return false, err
	}
	return true, nil
}
