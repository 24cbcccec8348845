package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"safezone-alert-service/internal/models"
)

func (d *DB) CreateSensorSample(ctx context.Context, s *models.SensorSample) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := d.q(ctx).Exec(ctx, `
	INSERT INTO sensor_samples (id, user_id, heart_rate, step_count, battery_level, accuracy, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.HeartRate, s.StepCount, s.BatteryLevel, s.Accuracy, s.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sensor sample: %w", err)
	}
	return nil
}

// SumStepsSince totals the steps reported by the user at or after since.
func (d *DB) SumStepsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var total int
	err := d.q(ctx).QueryRow(ctx, `
	SELECT COALESCE(SUM(step_count), 0)::int FROM sensor_samples
	WHERE user_id = $1 AND recorded_at >= $2`, userID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum steps for user %s: %w", userID, err)
	}
	return total, nil
}

// ListInactiveUsers returns users that reported samples since lookback and
// before quietSince, but recorded no steps at or after quietSince.
func (d *DB) ListInactiveUsers(ctx context.Context, lookback, quietSince time.Time) ([]uuid.UUID, error) {
	rows, err := d.q(ctx).Query(ctx, `
	SELECT user_id FROM sensor_samples
	WHERE recorded_at >= $1
	GROUP BY user_id
	HAVING MIN(recorded_at) < $2
	   AND COALESCE(SUM(step_count) FILTER (WHERE recorded_at >= $2), 0) = 0`, lookback, quietSince)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
