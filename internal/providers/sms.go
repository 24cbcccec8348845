package providers

import (
	"context"
	"fmt"
	"time"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/pkg/sms"
)

// smsMaxLength keeps a message within a few concatenated segments.
const smsMaxLength = 480

func NewSMS(baseURL, accountSID, authToken, fromNumber string, timeout time.Duration, logger *logging.Logger) Provider {
	client := sms.New(baseURL, accountSID, authToken, fromNumber, timeout)
	return newPaced("sms", 0, logger, func(ctx context.Context, to string, msg Message) error {
		return client.Send(ctx, to, smsText(msg))
	})
}

func smsText(msg Message) string {
	text := fmt.Sprintf("%s\n%s", msg.Subject, msg.Body)
	if r := []rune(text); len(r) > smsMaxLength {
		text = string(r[:smsMaxLength-3]) + "..."
	}
	return text
}
