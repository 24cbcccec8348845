package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"safezone-alert-service/internal/models"
)

func (d *DB) CreateLocationEvent(ctx context.Context, e *models.LocationEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO location_events (
		id, user_id, zone_id, event_type, latitude, longitude, accuracy,
		distance_from_center, triggered_alert, alert_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := d.q(ctx).Exec(ctx, query,
		e.ID, e.UserID, e.ZoneID, e.EventType, e.Latitude, e.Longitude, e.Accuracy,
		e.DistanceFromCenter, e.TriggeredAlert, e.AlertID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert location event: %w", err)
	}
	return nil
}

// AttachAlert marks an event as having raised alertID.
func (d *DB) AttachAlert(ctx context.Context, eventID, alertID uuid.UUID) error {
	_, err := d.q(ctx).Exec(ctx,
		`UPDATE location_events SET triggered_alert = TRUE, alert_id = $2 WHERE id = $1`,
		eventID, alertID)
	if err != nil {
		return fmt.Errorf("failed to attach alert %s to event %s: %w", alertID, eventID, err)
	}
	return nil
}

func (d *DB) ListLocationEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LocationEvent, error) {
	rows, err := d.q(ctx).Query(ctx, `
	SELECT id, user_id, zone_id, event_type, latitude, longitude, accuracy,
	       distance_from_center, triggered_alert, alert_id, created_at
	FROM location_events
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list location events: %w", err)
	}
	defer rows.Close()

	var events []models.LocationEvent
	for rows.Next() {
		var e models.LocationEvent
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.ZoneID, &e.EventType, &e.Latitude, &e.Longitude, &e.Accuracy,
			&e.DistanceFromCenter, &e.TriggeredAlert, &e.AlertID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
