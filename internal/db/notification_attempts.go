package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"safezone-alert-service/internal/models"
)

const attemptColumns = `id, alert_id, user_id, contact_id, recipient_name, route, channels, created_at`

func scanAttempt(row pgx.Row) (models.NotificationAttempt, error) {
	var a models.NotificationAttempt
	err := row.Scan(&a.ID, &a.AlertID, &a.UserID, &a.ContactID, &a.RecipientName, &a.Route, &a.Channels, &a.CreatedAt)
	return a, err
}

func (d *DB) CreateNotificationAttempt(ctx context.Context, a *models.NotificationAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := d.q(ctx).Exec(ctx, `
	INSERT INTO notification_attempts (`+attemptColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.AlertID, a.UserID, a.ContactID, a.RecipientName, a.Route, a.Channels, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification attempt: %w", err)
	}
	return nil
}

func (d *DB) ListNotificationAttempts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.NotificationAttempt, error) {
	return d.listAttempts(ctx, `WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (d *DB) ListAlertAttempts(ctx context.Context, alertID uuid.UUID) ([]models.NotificationAttempt, error) {
	return d.listAttempts(ctx, `WHERE alert_id = $1 ORDER BY created_at ASC`, alertID)
}

func (d *DB) listAttempts(ctx context.Context, clause string, args ...interface{}) ([]models.NotificationAttempt, error) {
	rows, err := d.q(ctx).Query(ctx, `SELECT `+attemptColumns+` FROM notification_attempts `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.NotificationAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
