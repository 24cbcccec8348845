package providers

import (
	"context"
	"time"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/pkg/push"
)

func NewPush(baseURL, accessToken string, perSecond int, timeout time.Duration, logger *logging.Logger) Provider {
	client := push.New(baseURL, accessToken, timeout)
	return newPaced("push", perSecond, logger, func(ctx context.Context, to string, msg Message) error {
		priority := "default"
		if msg.Priority == models.PriorityUrgent {
			priority = "high"
		}
		return client.Send(ctx, push.Message{
			To:       to,
			Title:    msg.Subject,
			Body:     msg.Body,
			Data:     msg.Data,
			Priority: priority,
			Sound:    "default",
		})
	})
}
