// Package telegram sends chat messages with a Telegram bot.
package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

type Client struct {
	bot *bot.Bot
}

// New creates a client for token. The bot is not contacted until the first send.
func New(token string, opts ...bot.Option) (*Client, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return &Client{bot: b}, nil
}

func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return fmt.Errorf("missing chat_id")
	}
	if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
	}
	return nil
}
