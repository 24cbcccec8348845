package models

import (
	"time"

	"github.com/google/uuid"
)

// EmergencyContact is a person notified on behalf of a monitored user.
type EmergencyContact struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	Relationship   string    `json:"relationship,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	PushToken      string    `json:"push_token,omitempty"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	IsPrimary      bool      `json:"is_primary"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c EmergencyContact) Validate() error {
	if c.Name == "" {
		return invalid("name", "must not be empty")
	}
	if c.Phone == "" && c.Email == "" && c.PushToken == "" && c.TelegramChatID == 0 {
		return invalid("contact", "at least one of phone, email, push_token or telegram_chat_id is required")
	}
	return nil
}

type ContactCreate struct {
	Name           string `json:"name" binding:"required"`
	Relationship   string `json:"relationship"`
	Phone          string `json:"phone"`
	Email          string `json:"email" binding:"omitempty,email"`
	PushToken      string `json:"push_token"`
	TelegramChatID int64  `json:"telegram_chat_id"`
	IsPrimary      bool   `json:"is_primary"`
}

func (c ContactCreate) ToContact(userID uuid.UUID) EmergencyContact {
	return EmergencyContact{
		UserID:         userID,
		Name:           c.Name,
		Relationship:   c.Relationship,
		Phone:          c.Phone,
		Email:          c.Email,
		PushToken:      c.PushToken,
		TelegramChatID: c.TelegramChatID,
		IsPrimary:      c.IsPrimary,
		IsActive:       true,
	}
}

type ContactUpdate struct {
	Name           *string `json:"name,omitempty"`
	Relationship   *string `json:"relationship,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Email          *string `json:"email,omitempty" binding:"omitempty,email"`
	PushToken      *string `json:"push_token,omitempty"`
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
	IsPrimary      *bool   `json:"is_primary,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

func (u ContactUpdate) Apply(c *EmergencyContact) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Relationship != nil {
		c.Relationship = *u.Relationship
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.PushToken != nil {
		c.PushToken = *u.PushToken
	}
	if u.TelegramChatID != nil {
		c.TelegramChatID = *u.TelegramChatID
	}
	if u.IsPrimary != nil {
		c.IsPrimary = *u.IsPrimary
	}
	if u.IsActive != nil {
		c.IsActive = *u.IsActive
	}
}
