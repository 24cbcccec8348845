// Package sensor classifies vital-sign samples.
package sensor

import (
	"safezone-alert-service/internal/models"
)

type Status string

const (
	StatusNormal     Status = "normal"
	StatusConcerning Status = "concerning"
	StatusCritical   Status = "critical"
)

func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusConcerning:
		return 1
	}
	return 0
}

// Anomaly tags.
const (
	DangerouslyHighHeartRate = "dangerously_high_heart_rate"
	DangerouslyLowHeartRate  = "dangerously_low_heart_rate"
	AbnormalHeartRate        = "abnormal_heart_rate"
	LowBattery               = "low_battery"
	PoorGPSAccuracy          = "poor_gps_accuracy"
)

type ActivityLevel string

const (
	ActivityInactive ActivityLevel = "inactive"
	ActivityLow      ActivityLevel = "low"
	ActivityModerate ActivityLevel = "moderate"
	ActivityHigh     ActivityLevel = "high"
)

// Thresholds. Heart rate in bpm, battery in percent, accuracy in meters.
const (
	criticalHighHR = 200
	criticalLowHR  = 30
	abnormalHighHR = 180
	abnormalLowHR  = 35
	lowBattery     = 20
	poorAccuracy   = 100
)

type Analysis struct {
	Status        Status        `json:"status"`
	Anomalies     []string      `json:"anomalies"`
	ActivityLevel ActivityLevel `json:"activity_level"`
	RecentSteps   int           `json:"recent_steps"`
}

// Has reports whether tag was raised.
func (a Analysis) Has(tag string) bool {
	for _, t := range a.Anomalies {
		if t == tag {
			return true
		}
	}
	return false
}

// Analyze classifies one sample. recentSteps is the step total over the
// trailing hour. Each rule is checked independently and the worst status wins.
func Analyze(s models.Sample, recentSteps int) Analysis {
	a := Analysis{
		Status:        StatusNormal,
		Anomalies:     []string{},
		ActivityLevel: Activity(recentSteps),
		RecentSteps:   recentSteps,
	}

	if s.HeartRate != nil {
		hr := *s.HeartRate
		switch {
		case hr > criticalHighHR:
			a.raise(StatusCritical, DangerouslyHighHeartRate)
		case hr < criticalLowHR:
			a.raise(StatusCritical, DangerouslyLowHeartRate)
		case hr > abnormalHighHR || hr < abnormalLowHR:
			a.raise(StatusConcerning, AbnormalHeartRate)
		}
	}
	if s.BatteryLevel != nil && *s.BatteryLevel < lowBattery {
		a.raise(StatusNormal, LowBattery)
	}
	if s.Accuracy != nil && *s.Accuracy > poorAccuracy {
		a.raise(StatusNormal, PoorGPSAccuracy)
	}
	return a
}

func (a *Analysis) raise(status Status, tag string) {
	a.Anomalies = append(a.Anomalies, tag)
	if status.rank() > a.Status.rank() {
		a.Status = status
	}
}

// Activity buckets a trailing-hour step count.
func Activity(steps int) ActivityLevel {
	switch {
	case steps <= 0:
		return ActivityInactive
	case steps < 50:
		return ActivityLow
	case steps < 200:
		return ActivityModerate
	}
	return ActivityHigh
}
