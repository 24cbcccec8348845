package providers

import (
	"context"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/pkg/email"
)

type EmailSettings struct {
	Server      string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

func NewEmail(s EmailSettings, logger *logging.Logger) Provider {
	from := s.FromAddress
	if from == "" {
		from = s.Username
	}
	return newPaced("email", 0, logger, func(ctx context.Context, to string, msg Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return email.Send(s.Server, s.Port, s.Username, s.Password, email.Message{
			FromName: s.FromName,
			From:     from,
			To:       to,
			Subject:  msg.Subject,
			Body:     msg.Body,
		})
	})
}
