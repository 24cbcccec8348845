package models

import (
	"time"

	"github.com/google/uuid"
)

type ZoneType string

const (
	ZoneSafe       ZoneType = "safe"
	ZoneRestricted ZoneType = "restricted"
)

// SafeZone is a circular geofence owned by a monitored user.
type SafeZone struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	Name                string    `json:"name"`
	ZoneType            ZoneType  `json:"zone_type"`
	CenterLatitude      float64   `json:"center_latitude"`
	CenterLongitude     float64   `json:"center_longitude"`
	RadiusMeters        float64   `json:"radius_meters"`
	AlertOnEnter        bool      `json:"alert_on_enter"`
	AlertOnExit         bool      `json:"alert_on_exit"`
	NotificationMessage string    `json:"notification_message,omitempty"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks the geometric invariants of the zone.
func (z SafeZone) Validate() error {
	if z.Name == "" {
		return invalid("name", "must not be empty")
	}
	if z.ZoneType != ZoneSafe && z.ZoneType != ZoneRestricted {
		return invalid("zone_type", "must be %q or %q", ZoneSafe, ZoneRestricted)
	}
	if z.CenterLatitude < -90 || z.CenterLatitude > 90 {
		return invalid("center_latitude", "must be within [-90, 90]")
	}
	if z.CenterLongitude < -180 || z.CenterLongitude > 180 {
		return invalid("center_longitude", "must be within [-180, 180]")
	}
	if z.RadiusMeters <= 0 {
		return invalid("radius_meters", "must be positive")
	}
	return nil
}

type SafeZoneCreate struct {
	Name                string   `json:"name" binding:"required"`
	ZoneType            ZoneType `json:"zone_type"`
	CenterLatitude      *float64 `json:"center_latitude" binding:"required"`
	CenterLongitude     *float64 `json:"center_longitude" binding:"required"`
	RadiusMeters        float64  `json:"radius_meters" binding:"required"`
	AlertOnEnter        bool     `json:"alert_on_enter"`
	AlertOnExit         *bool    `json:"alert_on_exit"`
	NotificationMessage string   `json:"notification_message"`
	IsActive            *bool    `json:"is_active"`
}

// ToZone builds a new zone. Zones alert on exit and are active unless told otherwise.
func (c SafeZoneCreate) ToZone(userID uuid.UUID) SafeZone {
	z := SafeZone{
		UserID:              userID,
		Name:                c.Name,
		ZoneType:            c.ZoneType,
		RadiusMeters:        c.RadiusMeters,
		AlertOnEnter:        c.AlertOnEnter,
		AlertOnExit:         true,
		NotificationMessage: c.NotificationMessage,
		IsActive:            true,
	}
	if z.ZoneType == "" {
		z.ZoneType = ZoneSafe
	}
	if c.CenterLatitude != nil {
		z.CenterLatitude = *c.CenterLatitude
	}
	if c.CenterLongitude != nil {
		z.CenterLongitude = *c.CenterLongitude
	}
	if c.AlertOnExit != nil {
		z.AlertOnExit = *c.AlertOnExit
	}
	if c.IsActive != nil {
		z.IsActive = *c.IsActive
	}
	return z
}

type SafeZoneUpdate struct {
	Name                *string   `json:"name,omitempty"`
	ZoneType            *ZoneType `json:"zone_type,omitempty"`
	CenterLatitude      *float64  `json:"center_latitude,omitempty"`
	CenterLongitude     *float64  `json:"center_longitude,omitempty"`
	RadiusMeters        *float64  `json:"radius_meters,omitempty"`
	AlertOnEnter        *bool     `json:"alert_on_enter,omitempty"`
	AlertOnExit         *bool     `json:"alert_on_exit,omitempty"`
	NotificationMessage *string   `json:"notification_message,omitempty"`
	IsActive            *bool     `json:"is_active,omitempty"`
}

// Apply merges the set fields of u into z.
func (u SafeZoneUpdate) Apply(z *SafeZone) {
	if u.Name != nil {
		z.Name = *u.Name
	}
	if u.ZoneType != nil {
		z.ZoneType = *u.ZoneType
	}
	if u.CenterLatitude != nil {
		z.CenterLatitude = *u.CenterLatitude
	}
	if u.CenterLongitude != nil {
		z.CenterLongitude = *u.CenterLongitude
	}
	if u.RadiusMeters != nil {
		z.RadiusMeters = *u.RadiusMeters
	}
	if u.AlertOnEnter != nil {
		z.AlertOnEnter = *u.AlertOnEnter
	}
	if u.AlertOnExit != nil {
		z.AlertOnExit = *u.AlertOnExit
	}
	if u.NotificationMessage != nil {
		z.NotificationMessage = *u.NotificationMessage
	}
	if u.IsActive != nil {
		z.IsActive = *u.IsActive
	}
}

// ZoneMembership is the last known inside/outside state of a user for one zone.
type ZoneMembership struct {
	UserID       uuid.UUID `json:"user_id"`
	ZoneID       uuid.UUID `json:"zone_id"`
	Inside       bool      `json:"inside"`
	LastSampleAt time.Time `json:"last_sample_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
