// Package push delivers mobile push notifications through the Expo push API.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const sendPath = "/--/api/v2/push/send"

// Message is one push notification.
type Message struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"`
	Sound    string            `json:"sound,omitempty"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type response struct {
	Data   []ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type Client struct {
	http *resty.Client
}

func New(baseURL, accessToken string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if accessToken != "" {
		http.SetAuthToken(accessToken)
	}
	return &Client{http: http}
}

// Send pushes msg and reports the ticket error, if any, as an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("missing push token")
	}

	var out response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody([]Message{msg}).
		SetResult(&out).
		SetError(&out).
		Post(sendPath)
	if err != nil {
		return fmt.Errorf("failed to send push to %s: %w", msg.To, err)
	}
	if resp.IsError() {
		if len(out.Errors) > 0 {
			return fmt.Errorf("push API returned %d: %s", resp.StatusCode(), out.Errors[0].Message)
		}
		return fmt.Errorf("push API returned %d", resp.StatusCode())
	}
	if len(out.Data) == 0 {
		return fmt.Errorf("push API returned no ticket for %s", msg.To)
	}
	if t := out.Data[0]; t.Status != "ok" {
		return fmt.Errorf("push rejected for %s: %s (%s)", msg.To, t.Message, t.Details.Error)
	}
	return nil
}
