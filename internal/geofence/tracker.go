// Package geofence tracks whether users are inside their safe zones and
// reports boundary crossings.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"safezone-alert-service/internal/geo"
	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/metrics"
	"safezone-alert-service/internal/models"
)

// BoundaryToleranceMeters is added to every zone radius to absorb GPS jitter.
const BoundaryToleranceMeters = 10

// ErrStaleSample is returned for a sample older than the last one applied to the zone.
var ErrStaleSample = errors.New("sample is older than the last processed sample")

// Store persists membership state and the location event log.
type Store interface {
	ListSafeZones(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.SafeZone, error)
	GetMembership(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneMembership, error)
	SaveMembership(ctx context.Context, m models.ZoneMembership) (bool, error)
	DeleteUserMemberships(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteZoneMemberships(ctx context.Context, zoneID uuid.UUID) error
	CreateLocationEvent(ctx context.Context, e *models.LocationEvent) error
}

// Transition is the outcome of evaluating one sample against one zone.
type Transition struct {
	Zone      models.SafeZone
	Event     models.LocationEvent
	Distance  float64
	Inside    bool
	Alertable bool
	AlertType models.AlertType
	Severity  models.Severity
	// RecordedAt is the time of the sample that produced the transition.
	RecordedAt time.Time
}

// Message returns the zone's configured text, or a default describing the crossing.
func (t Transition) Message() string {
	if t.Zone.NotificationMessage != "" {
		return t.Zone.NotificationMessage
	}
	if t.AlertType == models.AlertGeofenceEnter {
		return fmt.Sprintf("Entered zone %q", t.Zone.Name)
	}
	return fmt.Sprintf("Left safe zone %q (%.0f m from center)", t.Zone.Name, t.Distance)
}

type Tracker struct {
	store  Store
	logger *logging.Logger
}

func NewTracker(store Store, logger *logging.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

// Inside reports whether a point at distance meters from the center is within the zone.
func Inside(distance, radius float64) bool {
	return distance <= radius+BoundaryToleranceMeters
}

// Evaluate applies sample to the user's state for zone. The first sample for
// a pair only initializes state. Staying on the same side never alerts.
func (t *Tracker) Evaluate(ctx context.Context, userID uuid.UUID, zone models.SafeZone, sample models.Sample) (*Transition, error) {
	distance := geo.DistanceMeters(
		geo.Point{Latitude: sample.Latitude, Longitude: sample.Longitude},
		geo.Point{Latitude: zone.CenterLatitude, Longitude: zone.CenterLongitude},
	)
	insideNow := Inside(distance, zone.RadiusMeters)

	prev, err := t.store.GetMembership(ctx, userID, zone.ID)
	if err != nil {
		return nil, err
	}
	if prev != nil && sample.RecordedAt.Before(prev.LastSampleAt) {
		return nil, ErrStaleSample
	}

	tr := &Transition{Zone: zone, Distance: distance, Inside: insideNow, RecordedAt: sample.RecordedAt}
	eventType := models.EventLocationUpdate
	switch {
	case prev == nil:
		eventType = models.EventZoneStatusInit
	case prev.Inside && !insideNow:
		eventType = models.EventZoneExit
		tr.AlertType = models.AlertGeofenceExit
		tr.Severity = models.SeverityHigh
		tr.Alertable = zone.AlertOnExit
	case !prev.Inside && insideNow:
		eventType = models.EventZoneEnter
		tr.AlertType = models.AlertGeofenceEnter
		tr.Severity = models.SeverityMedium
		tr.Alertable = zone.AlertOnEnter
	}

	saved, err := t.store.SaveMembership(ctx, models.ZoneMembership{
		UserID:       userID,
		ZoneID:       zone.ID,
		Inside:       insideNow,
		LastSampleAt: sample.RecordedAt,
	})
	if err != nil {
		return nil, err
	}
	if !saved {
		// a newer sample was applied concurrently
		return nil, ErrStaleSample
	}

	zoneID := zone.ID
	tr.Event = models.LocationEvent{
		UserID:             userID,
		ZoneID:             &zoneID,
		EventType:          eventType,
		Latitude:           sample.Latitude,
		Longitude:          sample.Longitude,
		Accuracy:           sample.Accuracy,
		DistanceFromCenter: &distance,
		CreatedAt:          time.Now().UTC(),
	}
	if err := t.store.CreateLocationEvent(ctx, &tr.Event); err != nil {
		t.logger.With(logrus.Fields{"user_id": userID, "zone_id": zone.ID}).
			Errorf("Failed to log %s event: %v", eventType, err)
	}

	metrics.ZoneEvents.WithLabelValues(string(eventType)).Inc()
	t.logger.With(logrus.Fields{
		"user_id":  userID,
		"zone_id":  zone.ID,
		"event":    eventType,
		"distance": distance,
	}).Debugf("Zone evaluated")

	return tr, nil
}

// EvaluateAll evaluates sample against every active zone of the user. A
// failing zone does not stop the others; its error is joined into the result.
func (t *Tracker) EvaluateAll(ctx context.Context, userID uuid.UUID, sample models.Sample) ([]Transition, error) {
	zones, err := t.store.ListSafeZones(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	var (
		transitions []Transition
		errs        []error
	)
	for _, zone := range zones {
		tr, err := t.Evaluate(ctx, userID, zone, sample)
		if errors.Is(err, ErrStaleSample) {
			metrics.SamplesRejected.WithLabelValues("stale").Inc()
			t.logger.With(logrus.Fields{"user_id": userID, "zone_id": zone.ID}).
				Warnf("Dropping stale sample recorded at %s", sample.RecordedAt.Format(time.RFC3339))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("zone %s: %w", zone.ID, err))
			continue
		}
		transitions = append(transitions, *tr)
	}
	return transitions, errors.Join(errs...)
}

// Revert puts the user back on the side of the zone they were on before tr,
// so the next sample at or after tr's time detects the same crossing again.
// Transitions that did not cross the boundary are left alone.
func (t *Tracker) Revert(ctx context.Context, userID uuid.UUID, tr Transition) error {
	if tr.Event.EventType != models.EventZoneExit && tr.Event.EventType != models.EventZoneEnter {
		return nil
	}
	saved, err := t.store.SaveMembership(ctx, models.ZoneMembership{
		UserID:       userID,
		ZoneID:       tr.Zone.ID,
		Inside:       !tr.Inside,
		LastSampleAt: tr.RecordedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to revert %s for zone %s: %w", tr.Event.EventType, tr.Zone.ID, err)
	}
	if !saved {
		t.logger.Warnf("Zone %s moved past the %s sample before it could be reverted", tr.Zone.ID, tr.Event.EventType)
	}
	return nil
}

// ResetUser forgets all membership state for a user. The next sample for
// each zone re-initializes without alerting.
func (t *Tracker) ResetUser(ctx context.Context, userID uuid.UUID) error {
	n, err := t.store.DeleteUserMemberships(ctx, userID)
	if err != nil {
		return err
	}
	t.logger.Infof("Reset zone tracking for user %s (%d zones)", userID, n)
	return nil
}

// ForgetZone drops state for a deleted zone.
func (t *Tracker) ForgetZone(ctx context.Context, zoneID uuid.UUID) error {
	return t.store.DeleteZoneMemberships(ctx, zoneID)
}
