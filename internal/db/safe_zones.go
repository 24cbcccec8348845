package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"safezone-alert-service/internal/models"
)

const safeZoneColumns = `
	id, user_id, name, zone_type, center_latitude, center_longitude, radius_meters,
	alert_on_enter, alert_on_exit, notification_message, is_active, created_at, updated_at`

func scanSafeZone(row pgx.Row) (models.SafeZone, error) {
	var z models.SafeZone
	err := row.Scan(
		&z.ID, &z.UserID, &z.Name, &z.ZoneType, &z.CenterLatitude, &z.CenterLongitude, &z.RadiusMeters,
		&z.AlertOnEnter, &z.AlertOnExit, &z.NotificationMessage, &z.IsActive, &z.CreatedAt, &z.UpdatedAt,
	)
	return z, err
}

// CreateSafeZone inserts z, assigning its ID and timestamps.
func (d *DB) CreateSafeZone(ctx context.Context, z *models.SafeZone) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	now := time.Now().UTC()
	z.CreatedAt, z.UpdatedAt = now, now

	query := `
	INSERT INTO safe_zones (` + safeZoneColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := d.q(ctx).Exec(ctx, query,
		z.ID, z.UserID, z.Name, z.ZoneType, z.CenterLatitude, z.CenterLongitude, z.RadiusMeters,
		z.AlertOnEnter, z.AlertOnExit, z.NotificationMessage, z.IsActive, z.CreatedAt, z.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert safe zone: %w", err)
	}
	return nil
}

func (d *DB) GetSafeZone(ctx context.Context, userID, id uuid.UUID) (models.SafeZone, error) {
	query := `SELECT ` + safeZoneColumns + ` FROM safe_zones WHERE id = $1 AND user_id = $2`
	z, err := scanSafeZone(d.q(ctx).QueryRow(ctx, query, id, userID))
	if err != nil {
		return models.SafeZone{}, fmt.Errorf("failed to get safe zone %s: %w", id, notFound(err))
	}
	return z, nil
}

// ListSafeZones returns the user's zones, newest first.
func (d *DB) ListSafeZones(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.SafeZone, error) {
	query := `SELECT ` + safeZoneColumns + ` FROM safe_zones WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list safe zones: %w", err)
	}
	defer rows.Close()

	var zones []models.SafeZone
	for rows.Next() {
		z, err := scanSafeZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan safe zone: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (d *DB) UpdateSafeZone(ctx context.Context, z *models.SafeZone) error {
	z.UpdatedAt = time.Now().UTC()
	query := `
	UPDATE safe_zones SET
		name = $3, zone_type = $4, center_latitude = $5, center_longitude = $6, radius_meters = $7,
		alert_on_enter = $8, alert_on_exit = $9, notification_message = $10, is_active = $11, updated_at = $12
	WHERE id = $1 AND user_id = $2`

	tag, err := d.q(ctx).Exec(ctx, query,
		z.ID, z.UserID, z.Name, z.ZoneType, z.CenterLatitude, z.CenterLongitude, z.RadiusMeters,
		z.AlertOnEnter, z.AlertOnExit, z.NotificationMessage, z.IsActive, z.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update safe zone %s: %w", z.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update safe zone %s: %w", z.ID, ErrNotFound)
	}
	return nil
}

// DeactivateSafeZone soft-deletes a zone.
func (d *DB) DeactivateSafeZone(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := d.q(ctx).Exec(ctx,
		`UPDATE safe_zones SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate safe zone %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to deactivate safe zone %s: %w", id, ErrNotFound)
	}
	return nil
}
