// Package sms sends text messages through the Twilio REST API.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	http       *resty.Client
	accountSID string
	fromNumber string
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func New(baseURL, accountSID, authToken, fromNumber string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetBasicAuth(accountSID, authToken).
		SetHeader("Accept", "application/json")
	return &Client{http: http, accountSID: accountSID, fromNumber: fromNumber}
}

func (c *Client) Send(ctx context.Context, toNumber, body string) error {
	if toNumber == "" {
		return fmt.Errorf("missing phone number")
	}

	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   toNumber,
			"From": c.fromNumber,
			"Body": body,
		}).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.accountSID))
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}
	if resp.IsError() {
		return fmt.Errorf("twilio API returned %d for %s: %s (code %d)", resp.StatusCode(), toNumber, apiErr.Message, apiErr.Code)
	}
	return nil
}
