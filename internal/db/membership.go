package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"safezone-alert-service/internal/models"
)

// GetMembership returns the stored state for (user, zone), or nil when the
// pair has never been evaluated.
func (d *DB) GetMembership(ctx context.Context, userID, zoneID uuid.UUID) (*models.ZoneMembership, error) {
	var m models.ZoneMembership
	err := d.q(ctx).QueryRow(ctx, `
	SELECT user_id, zone_id, inside, last_sample_at, updated_at
	FROM zone_membership
	WHERE user_id = $1 AND zone_id = $2`, userID, zoneID).
		Scan(&m.UserID, &m.ZoneID, &m.Inside, &m.LastSampleAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone membership: %w", err)
	}
	return &m, nil
}

// SaveMembership upserts m unless the stored state already reflects a newer
// sample. It reports whether the row was written.
func (d *DB) SaveMembership(ctx context.Context, m models.ZoneMembership) (bool, error) {
	tag, err := d.q(ctx).Exec(ctx, `
	INSERT INTO zone_membership (user_id, zone_id, inside, last_sample_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (user_id, zone_id) DO UPDATE
		SET inside = EXCLUDED.inside, last_sample_at = EXCLUDED.last_sample_at, updated_at = NOW()
		WHERE zone_membership.last_sample_at <= EXCLUDED.last_sample_at`,
		m.UserID, m.ZoneID, m.Inside, m.LastSampleAt)
	if err != nil {
		return false, fmt.Errorf("failed to save zone membership: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteUserMemberships clears all zone state for a user.
func (d *DB) DeleteUserMemberships(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := d.q(ctx).Exec(ctx, `DELETE FROM zone_membership WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset zone membership for user %s: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteZoneMemberships clears all state for one zone.
func (d *DB) DeleteZoneMemberships(ctx context.Context, zoneID uuid.UUID) error {
	if _, err := d.q(ctx).Exec(ctx, `DELETE FROM zone_membership WHERE zone_id = $1`, zoneID); err != nil {
		return fmt.Errorf("failed to delete zone membership for zone %s: %w", zoneID, err)
	}
	return nil
}
