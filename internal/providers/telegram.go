package providers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/pkg/telegram"
)

// NewTelegram returns a provider whose addresses are numeric chat ids.
func NewTelegram(token string, perSecond int, logger *logging.Logger, opts ...bot.Option) (Provider, error) {
	client, err := telegram.New(token, opts...)
	if err != nil {
		return nil, err
	}
	return newPaced("telegram", perSecond, logger, func(ctx context.Context, to string, msg Message) error {
		chatID, err := strconv.ParseInt(to, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat_id %q: %w", to, err)
		}
		return client.Send(ctx, chatID, fmt.Sprintf("%s\n\n%s", msg.Subject, msg.Body))
	}), nil
}
