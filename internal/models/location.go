package models

import (
	"time"

	"github.com/google/uuid"
)

type LocationEventType string

const (
	EventLocationUpdate LocationEventType = "location_update"
	EventZoneEnter      LocationEventType = "zone_enter"
	EventZoneExit       LocationEventType = "zone_exit"
	EventZoneStatusInit LocationEventType = "zone_status_init"
)

// LocationEvent is an append-only record of one zone evaluation.
type LocationEvent struct {
	ID                 uuid.UUID         `json:"id"`
	UserID             uuid.UUID         `json:"user_id"`
	ZoneID             *uuid.UUID        `json:"zone_id,omitempty"`
	EventType          LocationEventType `json:"event_type"`
	Latitude           float64           `json:"latitude"`
	Longitude          float64           `json:"longitude"`
	Accuracy           *float64          `json:"accuracy,omitempty"`
	DistanceFromCenter *float64          `json:"distance_from_center,omitempty"`
	TriggeredAlert     bool              `json:"triggered_alert"`
	AlertID            *uuid.UUID        `json:"alert_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Sample is one validated device reading.
type Sample struct {
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	HeartRate    *int      `json:"heart_rate,omitempty"`
	StepCount    *int      `json:"step_count,omitempty"`
	BatteryLevel *int      `json:"battery_level,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// HasVitals reports whether the sample carries anything beyond position.
func (s Sample) HasVitals() bool {
	return s.HeartRate != nil || s.StepCount != nil || s.BatteryLevel != nil
}

// MaxClockSkew is how far ahead of server time a device timestamp may be.
// Timestamps within the skew are clamped to server time.
const MaxClockSkew = 2 * time.Minute

// SampleInput is the ingestion body posted by devices.
type SampleInput struct {
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	Accuracy     *float64   `json:"accuracy,omitempty"`
	HeartRate    *int       `json:"heart_rate,omitempty"`
	StepCount    *int       `json:"step_count,omitempty"`
	BatteryLevel *int       `json:"battery_level,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// ToSample validates the input and stamps it with now when the device sent no timestamp.
// Future timestamps beyond MaxClockSkew are rejected.
func (in SampleInput) ToSample(now time.Time) (Sample, error) {
	if in.Latitude == nil {
		return Sample{}, invalid("latitude", "is required")
	}
	if in.Longitude == nil {
		return Sample{}, invalid("longitude", "is required")
	}
	if *in.Latitude < -90 || *in.Latitude > 90 {
		return Sample{}, invalid("latitude", "must be within [-90, 90]")
	}
	if *in.Longitude < -180 || *in.Longitude > 180 {
		return Sample{}, invalid("longitude", "must be within [-180, 180]")
	}
	if in.Accuracy != nil && *in.Accuracy < 0 {
		return Sample{}, invalid("accuracy", "must not be negative")
	}
	if in.HeartRate != nil && (*in.HeartRate < 0 || *in.HeartRate > 300) {
		return Sample{}, invalid("heart_rate", "must be within [0, 300]")
	}
	if in.StepCount != nil && *in.StepCount < 0 {
		return Sample{}, invalid("step_count", "must not be negative")
	}
	if in.BatteryLevel != nil && (*in.BatteryLevel < 0 || *in.BatteryLevel > 100) {
		return Sample{}, invalid("battery_level", "must be within [0, 100]")
	}

	s := Sample{
		Latitude:     *in.Latitude,
		Longitude:    *in.Longitude,
		Accuracy:     in.Accuracy,
		HeartRate:    in.HeartRate,
		StepCount:    in.StepCount,
		BatteryLevel: in.BatteryLevel,
		RecordedAt:   now,
	}
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts := in.Timestamp.UTC()
		if ts.After(now.Add(MaxClockSkew)) {
			return Sample{}, invalid("timestamp", "is more than %s ahead of server time", MaxClockSkew)
		}
		if ts.After(now) {
			ts = now
		}
		s.RecordedAt = ts
	}
	return s, nil
}

// SensorSample is a persisted vital-sign reading.
type SensorSample struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	HeartRate    *int      `json:"heart_rate,omitempty"`
	StepCount    *int      `json:"step_count,omitempty"`
	BatteryLevel *int      `json:"battery_level,omitempty"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}
