package models

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
	ChannelTelegram Channel = "telegram"
)

// Channels lists every channel in dispatch order.
var Channels = []Channel{ChannelSMS, ChannelEmail, ChannelPush, ChannelTelegram}

type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeThrottled OutcomeStatus = "throttled"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// ChannelOutcome records what happened on one channel for one recipient.
type ChannelOutcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

type Route string

const (
	RouteEmergencyContact Route = "emergency_contact"
	RouteCaregiver        Route = "caregiver"
)

// NotificationAttempt is the per-recipient result of one alert dispatch.
type NotificationAttempt struct {
	ID            uuid.UUID                  `json:"id"`
	AlertID       uuid.UUID                  `json:"alert_id"`
	UserID        uuid.UUID                  `json:"user_id"`
	ContactID     *uuid.UUID                 `json:"contact_id,omitempty"`
	RecipientName string                     `json:"recipient_name"`
	Route         Route                      `json:"route"`
	Channels      map[Channel]ChannelOutcome `json:"channels"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// Succeeded reports whether at least one channel delivered.
func (a NotificationAttempt) Succeeded() bool {
	for _, o := range a.Channels {
		if o.Status == OutcomeSuccess {
			return true
		}
	}
	return false
}

// Outcome returns the recorded outcome for ch, or skipped when none was recorded.
func (a NotificationAttempt) Outcome(ch Channel) ChannelOutcome {
	if o, ok := a.Channels[ch]; ok {
		return o
	}
	return ChannelOutcome{Status: OutcomeSkipped}
}
