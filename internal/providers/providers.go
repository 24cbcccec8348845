// Package providers adapts the gateway clients in pkg/ to a common Send call
// with pacing and retries.
package providers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"safezone-alert-service/internal/config"
	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/utils"
)

// Message is the channel-neutral content of one notification.
type Message struct {
	Subject  string
	Body     string
	Priority models.Priority
	Data     map[string]string
}

// Provider delivers msg to one address on its channel.
type Provider interface {
	Send(ctx context.Context, to string, msg Message) error
}

const maxAttempts = 3

var retryDelay = time.Second

// paced wraps a send function with a token-bucket limiter and retries.
type paced struct {
	name    string
	limiter *rate.Limiter
	logger  *logging.Logger
	send    func(ctx context.Context, to string, msg Message) error
}

func newPaced(name string, perSecond int, logger *logging.Logger, send func(ctx context.Context, to string, msg Message) error) *paced {
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
	return &paced{name: name, limiter: limiter, logger: logger, send: send}
}

func (p *paced) Send(ctx context.Context, to string, msg Message) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limit wait: %w", p.name, err)
		}
	}
	return utils.Retry(ctx, p.logger, maxAttempts, retryDelay, func() error {
		return p.send(ctx, to, msg)
	})
}

// New builds a provider for every configured channel. Channels without
// credentials are left out of the map.
func New(cfg config.Config, logger *logging.Logger) (map[models.Channel]Provider, error) {
	out := make(map[models.Channel]Provider)
	timeout := cfg.Notification.GatewayTimeout

	if cfg.SMS.AccountSID != "" {
		out[models.ChannelSMS] = NewSMS(cfg.SMS.BaseURL, cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber, timeout, logger)
	}
	if cfg.Email.SMTPServer != "" {
		out[models.ChannelEmail] = NewEmail(EmailSettings{
			Server:      cfg.Email.SMTPServer,
			Port:        cfg.Email.SMTPPort,
			Username:    cfg.Email.Username,
			Password:    cfg.Email.Password,
			FromName:    cfg.Email.FromName,
			FromAddress: cfg.Email.FromAddress,
		}, logger)
	}
	if cfg.Push.BaseURL != "" {
		out[models.ChannelPush] = NewPush(cfg.Push.BaseURL, cfg.Push.AccessToken, cfg.Push.RatePerSecond, timeout, logger)
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.RatePerSecond, logger)
		if err != nil {
			return nil, err
		}
		out[models.ChannelTelegram] = tg
	}

	for ch := range out {
		logger.Infof("Notification channel %s enabled", ch)
	}
	return out, nil
}
