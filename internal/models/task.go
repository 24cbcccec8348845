package models

import "time"

// Task is a queued alert dispatch.
type Task struct {
	Alert    EmergencyAlert
	User     User
	QueuedAt time.Time
}
