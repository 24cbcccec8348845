// Package services ties the geofence tracker, sensor analyzer and alert
// manager together for each incoming device sample, and hosts the live feed
// and scheduled sweeps.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"safezone-alert-service/internal/alerts"
	"safezone-alert-service/internal/geofence"
	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/metrics"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/sensor"
)

// StepWindow is the trailing period used to judge activity.
const StepWindow = time.Hour

// ErrAlertNotRaised marks a sample whose alert could not be stored. Any zone
// crossing behind it has been rolled back so a resend detects it again.
var ErrAlertNotRaised = errors.New("alert not raised")

type SampleStore interface {
	CreateSensorSample(ctx context.Context, s *models.SensorSample) error
	SumStepsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	AttachAlert(ctx context.Context, eventID, alertID uuid.UUID) error
}

type ZoneTracker interface {
	EvaluateAll(ctx context.Context, userID uuid.UUID, sample models.Sample) ([]geofence.Transition, error)
	Revert(ctx context.Context, userID uuid.UUID, tr geofence.Transition) error
}

type AlertCreator interface {
	CreateAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*alerts.Result, error)
	CreateUrgentAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*alerts.Result, error)
}

// ZoneEvent summarizes one zone evaluation for the caller.
type ZoneEvent struct {
	ZoneID    uuid.UUID                `json:"zone_id"`
	ZoneName  string                   `json:"zone_name"`
	EventType models.LocationEventType `json:"event_type"`
	Distance  float64                  `json:"distance_meters"`
	Inside    bool                     `json:"inside"`
	AlertID   *uuid.UUID               `json:"alert_id,omitempty"`
}

type ProcessResult struct {
	Sample     models.Sample    `json:"sample"`
	ZoneEvents []ZoneEvent      `json:"zone_events"`
	Health     *sensor.Analysis `json:"health,omitempty"`
	Alerts     []alerts.Result  `json:"alerts"`
}

type Pipeline struct {
	store   SampleStore
	tracker ZoneTracker
	alerts  AlertCreator
	logger  *logging.Logger
	now     func() time.Time
}

func NewPipeline(store SampleStore, tracker ZoneTracker, creator AlertCreator, logger *logging.Logger) *Pipeline {
	return &Pipeline{store: store, tracker: tracker, alerts: creator, logger: logger, now: time.Now}
}

// Process validates one sample and runs it through zone tracking and vital
// analysis, raising alerts as needed. Invalid input returns a
// *models.ValidationError and changes nothing. Collaborator failures are
// logged and joined into the returned error; the work that succeeded is
// still reported in the result. A failed alert write wraps ErrAlertNotRaised.
func (p *Pipeline) Process(ctx context.Context, userID uuid.UUID, in models.SampleInput, source string) (*ProcessResult, error) {
	sample, err := in.ToSample(p.now().UTC())
	if err != nil {
		metrics.SamplesRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}
	metrics.SamplesProcessed.WithLabelValues(source).Inc()

	log := p.logger.With(logrus.Fields{"user_id": userID, "source": source})
	res := &ProcessResult{Sample: sample, ZoneEvents: []ZoneEvent{}, Alerts: []alerts.Result{}}
	var errs []error

	if sample.HasVitals() {
		if err := p.store.CreateSensorSample(ctx, &models.SensorSample{
			UserID:       userID,
			HeartRate:    sample.HeartRate,
			StepCount:    sample.StepCount,
			BatteryLevel: sample.BatteryLevel,
			Accuracy:     sample.Accuracy,
			RecordedAt:   sample.RecordedAt,
		}); err != nil {
			log.Errorf("Failed to store sensor sample: %v", err)
			errs = append(errs, err)
		}
	}

	transitions, err := p.tracker.EvaluateAll(ctx, userID, sample)
	if err != nil {
		log.Errorf("Zone evaluation failed: %v", err)
		errs = append(errs, err)
	}
	for _, tr := range transitions {
		ev := ZoneEvent{
			ZoneID:    tr.Zone.ID,
			ZoneName:  tr.Zone.Name,
			EventType: tr.Event.EventType,
			Distance:  tr.Distance,
			Inside:    tr.Inside,
		}
		if tr.Alertable {
			alert, err := p.zoneAlert(ctx, userID, sample, tr)
			if err != nil {
				log.Errorf("Failed to raise %s alert for zone %s: %v", tr.AlertType, tr.Zone.ID, err)
				if rerr := p.tracker.Revert(ctx, userID, tr); rerr != nil {
					log.Errorf("Failed to roll back zone %s: %v", tr.Zone.ID, rerr)
				}
				errs = append(errs, fmt.Errorf("%w for zone %s: %w", ErrAlertNotRaised, tr.Zone.ID, err))
			} else {
				id := alert.Alert.ID
				ev.AlertID = &id
				res.Alerts = append(res.Alerts, *alert)
			}
		}
		res.ZoneEvents = append(res.ZoneEvents, ev)
	}

	if sample.HasVitals() {
		analysis, alert, err := p.analyze(ctx, userID, sample)
		if err != nil {
			log.Errorf("Vital analysis failed: %v", err)
			errs = append(errs, fmt.Errorf("%w for vitals: %w", ErrAlertNotRaised, err))
		}
		res.Health = analysis
		if alert != nil {
			res.Alerts = append(res.Alerts, *alert)
		}
	}

	return res, errors.Join(errs...)
}

func (p *Pipeline) zoneAlert(ctx context.Context, userID uuid.UUID, sample models.Sample, tr geofence.Transition) (*alerts.Result, error) {
	lat, lon := sample.Latitude, sample.Longitude
	res, err := p.alerts.CreateAlert(ctx, userID, models.AlertInput{
		AlertType: tr.AlertType,
		Message:   tr.Message(),
		Latitude:  &lat,
		Longitude: &lon,
		Severity:  tr.Severity,
		Metadata: map[string]interface{}{
			"zone_id":         tr.Zone.ID.String(),
			"zone_name":       tr.Zone.Name,
			"distance_meters": tr.Distance,
		},
	})
	if err != nil {
		return nil, err
	}
	if tr.Event.ID != uuid.Nil {
		if err := p.store.AttachAlert(ctx, tr.Event.ID, res.Alert.ID); err != nil {
			p.logger.Warnf("Failed to link event %s to alert %s: %v", tr.Event.ID, res.Alert.ID, err)
		}
	}
	return res, nil
}

// analyze classifies the sample's vitals. Critical readings go through the
// urgent path; concerning ones raise a sensor alert.
func (p *Pipeline) analyze(ctx context.Context, userID uuid.UUID, sample models.Sample) (*sensor.Analysis, *alerts.Result, error) {
	steps, err := p.store.SumStepsSince(ctx, userID, sample.RecordedAt.Add(-StepWindow))
	if err != nil {
		// analyze heart rate without the activity level
		p.logger.Warnf("Failed to sum recent steps for user %s: %v", userID, err)
		steps = 0
	}
	analysis := sensor.Analyze(sample, steps)

	in := models.AlertInput{
		Latitude:  &sample.Latitude,
		Longitude: &sample.Longitude,
		Metadata: map[string]interface{}{
			"anomalies":      analysis.Anomalies,
			"activity_level": analysis.ActivityLevel,
		},
	}
	if sample.HeartRate != nil {
		in.Metadata["heart_rate"] = *sample.HeartRate
	}

	var res *alerts.Result
	switch analysis.Status {
	case sensor.StatusCritical:
		in.AlertType = models.AlertHealthAnomaly
		in.Severity = models.SeverityCritical
		in.Message = fmt.Sprintf("Critical vital signs: %s", strings.Join(analysis.Anomalies, ", "))
		res, err = p.alerts.CreateUrgentAlert(ctx, userID, in)
	case sensor.StatusConcerning:
		in.AlertType = models.AlertSensorDetected
		in.Severity = models.SeverityMedium
		in.Message = fmt.Sprintf("Unusual vital signs: %s", strings.Join(analysis.Anomalies, ", "))
		res, err = p.alerts.CreateAlert(ctx, userID, in)
	default:
		return &analysis, nil, nil
	}
	if err != nil {
		return &analysis, nil, err
	}
	return &analysis, res, nil
}
