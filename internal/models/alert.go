package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertManual             AlertType = "manual"
	AlertSOS                AlertType = "sos"
	AlertGeofenceEnter      AlertType = "geofence_enter"
	AlertGeofenceExit       AlertType = "geofence_exit"
	AlertHealthAnomaly      AlertType = "health_anomaly"
	AlertInactivityDetected AlertType = "inactivity_detected"
	AlertSensorDetected     AlertType = "sensor_detected"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertManual, AlertSOS, AlertGeofenceEnter, AlertGeofenceExit,
		AlertHealthAnomaly, AlertInactivityDetected, AlertSensorDetected:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type AlertStatus string

const (
	AlertActive     AlertStatus = "active"
	AlertResolved   AlertStatus = "resolved"
	AlertFalseAlarm AlertStatus = "false_alarm"
)

// Terminal reports whether the status can no longer change.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertFalseAlarm
}

func (s AlertStatus) Valid() bool {
	return s == AlertActive || s.Terminal()
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// EmergencyAlert is a raised incident for a monitored user.
type EmergencyAlert struct {
	ID               uuid.UUID              `json:"id"`
	UserID           uuid.UUID              `json:"user_id"`
	AlertType        AlertType              `json:"alert_type"`
	Message          string                 `json:"message"`
	Latitude         *float64               `json:"latitude,omitempty"`
	Longitude        *float64               `json:"longitude,omitempty"`
	Address          *string                `json:"address,omitempty"`
	Severity         Severity               `json:"severity"`
	Status           AlertStatus            `json:"status"`
	Priority         Priority               `json:"priority"`
	ContactsNotified bool                   `json:"contacts_notified"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	TriggeredAt      time.Time              `json:"triggered_at"`
	ResolvedAt       *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy       *uuid.UUID             `json:"resolved_by,omitempty"`
}

// AlertInput is the caller-supplied part of a new alert.
type AlertInput struct {
	AlertType AlertType              `json:"alert_type" binding:"required"`
	Message   string                 `json:"message"`
	Latitude  *float64               `json:"latitude,omitempty"`
	Longitude *float64               `json:"longitude,omitempty"`
	Address   *string                `json:"address,omitempty"`
	Severity  Severity               `json:"severity"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the input and fills the default severity.
func (in *AlertInput) Validate() error {
	if !in.AlertType.Valid() {
		return invalid("alert_type", "unknown type %q", in.AlertType)
	}
	if in.Severity == "" {
		in.Severity = SeverityMedium
	}
	if !in.Severity.Valid() {
		return invalid("severity", "unknown severity %q", in.Severity)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return invalid("latitude", "latitude and longitude must be given together")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return invalid("latitude", "must be within [-90, 90]")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return invalid("longitude", "must be within [-180, 180]")
	}
	return nil
}

type AlertStatusUpdate struct {
	Status     AlertStatus `json:"status" binding:"required"`
	ResolvedBy *uuid.UUID  `json:"resolved_by,omitempty"`
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Status AlertStatus
	Type   AlertType
	Limit  int
	Offset int
}
