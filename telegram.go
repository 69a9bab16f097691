package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger is the part of the Telegram Bot API the bot depends on.
type Messenger interface {
	GetUpdates(ctx context.Context, offset, limit, timeout int) ([]tgbotapi.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (tgbotapi.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendPhoto(ctx context.Context, chatID int64, name string, data []byte) error
	// ChatExists returns false, nil only when Telegram answers 400 for the chat.
	ChatExists(ctx context.Context, chatID int64) (bool, error)
	Prepare(commands []tgbotapi.BotCommand) error
}

type telegramClient struct {
	api *tgbotapi.BotAPI
}

// NewTelegramClient connects with the token and validates it with getMe.
// endpoint may be empty for the public Bot API.
func NewTelegramClient(token, endpoint string, pollTimeout time.Duration) (*telegramClient, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	httpClient := &http.Client{
		Timeout: pollTimeout + 30*time.Second,
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, err
	}
	return &telegramClient{api: api}, nil
}

func (c *telegramClient) UserName() string {
	return c.api.Self.UserName
}

func (c *telegramClient) GetUpdates(ctx context.Context, offset, limit, timeout int) ([]tgbotapi.Update, error) {
	u := tgbotapi.NewUpdate(offset)
	u.Limit = limit
	u.Timeout = timeout
	u.AllowedUpdates = []string{"message"}

	// The SDK call cannot be cancelled, so shutdown must not wait on it.
	type result struct {
		updates []tgbotapi.Update
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		updates, err := c.api.GetUpdates(u)
		ch <- result{updates, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.updates, r.err
	}
}

func (c *telegramClient) SendMessage(_ context.Context, chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return c.api.Send(msg)
}

func (c *telegramClient) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (c *telegramClient) SendPhoto(_ context.Context, chatID int64, name string, data []byte) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	_, err := c.api.Send(photo)
	return err
}

func (c *telegramClient) ChatExists(_ context.Context, chatID int64) (bool, error) {
	_, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err == nil {
		return true, nil
	}
	if apiErrorCode(err) == http.StatusBadRequest {
		return false, nil
	}
	return false, fmt.Errorf("getChat %d: %w", chatID, err)
}

// Prepare drops any webhook, so getUpdates is allowed, and registers the
// command list shown by Telegram clients.
func (c *telegramClient) Prepare(commands []tgbotapi.BotCommand) error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	if _, err := c.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("setMyCommands: %w", err)
	}
	return nil
}

// apiErrorCode extracts the Bot API error_code, or 0 for transport errors.
func apiErrorCode(err error) int {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) {
		return ptr.Code
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val.Code
	}
	return 0
}
