package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"safezone-alert-service/internal/models"
)

const alertColumns = `
	id, user_id, alert_type, message, latitude, longitude, address, severity, status, priority,
	contacts_notified, metadata, triggered_at, resolved_at, resolved_by`

func scanAlert(row pgx.Row) (models.EmergencyAlert, error) {
	var a models.EmergencyAlert
	err := row.Scan(
		&a.ID, &a.UserID, &a.AlertType, &a.Message, &a.Latitude, &a.Longitude, &a.Address,
		&a.Severity, &a.Status, &a.Priority, &a.ContactsNotified, &a.Metadata,
		&a.TriggeredAt, &a.ResolvedAt, &a.ResolvedBy,
	)
	return a, err
}

// CreateAlert inserts a new alert record, assigning its ID when unset.
func (d *DB) CreateAlert(ctx context.Context, a *models.EmergencyAlert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.TriggeredAt.IsZero() {
		a.TriggeredAt = time.Now().UTC()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]interface{}{}
	}

	query := `
	INSERT INTO emergency_alerts (` + alertColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := d.q(ctx).Exec(ctx, query,
		a.ID, a.UserID, a.AlertType, a.Message, a.Latitude, a.Longitude, a.Address,
		a.Severity, a.Status, a.Priority, a.ContactsNotified, a.Metadata,
		a.TriggeredAt, a.ResolvedAt, a.ResolvedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (d *DB) GetAlert(ctx context.Context, id uuid.UUID) (models.EmergencyAlert, error) {
	a, err := scanAlert(d.q(ctx).QueryRow(ctx, `SELECT `+alertColumns+` FROM emergency_alerts WHERE id = $1`, id))
	if err != nil {
		return models.EmergencyAlert{}, fmt.Errorf("failed to get alert %s: %w", id, notFound(err))
	}
	return a, nil
}

// FindRecentAlert returns the newest alert of alertType for the user
// triggered at or after since, or nil.
func (d *DB) FindRecentAlert(ctx context.Context, userID uuid.UUID, alertType models.AlertType, since time.Time) (*models.EmergencyAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM emergency_alerts
	WHERE user_id = $1 AND alert_type = $2 AND triggered_at >= $3
	ORDER BY triggered_at DESC
	LIMIT 1`
	a, err := scanAlert(d.q(ctx).QueryRow(ctx, query, userID, alertType, since))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recent alert: %w", err)
	}
	return &a, nil
}

// CountAlertsSince counts the user's alerts triggered at or after since,
// ignoring alerts of excludeType.
func (d *DB) CountAlertsSince(ctx context.Context, userID uuid.UUID, since time.Time, excludeType models.AlertType) (int, error) {
	var n int
	err := d.q(ctx).QueryRow(ctx, `
	SELECT COUNT(*) FROM emergency_alerts
	WHERE user_id = $1 AND triggered_at >= $2 AND alert_type <> $3`,
		userID, since, excludeType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// ResolveAlert moves an active alert to a terminal status. It matches no row
// once the alert has left active.
func (d *DB) ResolveAlert(ctx context.Context, id uuid.UUID, status models.AlertStatus, resolvedBy *uuid.UUID, at time.Time) (models.EmergencyAlert, error) {
	query := `
	UPDATE emergency_alerts
	SET status = $2, resolved_at = $3, resolved_by = $4
	WHERE id = $1 AND status = 'active'
	RETURNING ` + alertColumns
	a, err := scanAlert(d.q(ctx).QueryRow(ctx, query, id, status, at, resolvedBy))
	if err != nil {
		return models.EmergencyAlert{}, fmt.Errorf("failed to resolve alert %s: %w", id, notFound(err))
	}
	return a, nil
}

func (d *DB) SetContactsNotified(ctx context.Context, id uuid.UUID, notified bool) error {
	_, err := d.q(ctx).Exec(ctx, `UPDATE emergency_alerts SET contacts_notified = $2 WHERE id = $1`, id, notified)
	if err != nil {
		return fmt.Errorf("failed to update contacts_notified for alert %s: %w", id, err)
	}
	return nil
}

// ListAlerts fetches alerts for a user with pagination and optional filters.
func (d *DB) ListAlerts(ctx context.Context, userID uuid.UUID, f models.AlertFilter) ([]models.EmergencyAlert, int, error) {
	where := ` WHERE user_id = $1`
	args := []interface{}{userID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where += fmt.Sprintf(" AND alert_type = $%d", len(args))
	}

	var total int
	if err := d.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM emergency_alerts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := `SELECT ` + alertColumns + ` FROM emergency_alerts` + where +
		fmt.Sprintf(" ORDER BY triggered_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := d.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get alerts: %w", err)
	}
	defer rows.Close()

	var list []models.EmergencyAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	return list, total, rows.Err()
}
