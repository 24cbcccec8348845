package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"safezone-alert-service/internal/models"
)

func (d *DB) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := d.q(ctx).QueryRow(ctx, `SELECT id, name, role, email, timezone FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Role, &u.Email, &u.Timezone)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user %s: %w", id, notFound(err))
	}
	return u, nil
}

// ListAcceptedCaregivers returns the accepted care relationships of an elderly user.
func (d *DB) ListAcceptedCaregivers(ctx context.Context, elderlyID uuid.UUID) ([]models.CareRelationship, error) {
	rows, err := d.q(ctx).Query(ctx, `
	SELECT r.id, r.elderly_id, r.caregiver_id, r.relationship_type, r.status, u.name, u.email
	FROM care_relationships r
	JOIN users u ON u.id = r.caregiver_id
	WHERE r.elderly_id = $1 AND r.status = 'accepted'`, elderlyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list caregivers for user %s: %w", elderlyID, err)
	}
	defer rows.Close()

	var rels []models.CareRelationship
	for rows.Next() {
		var r models.CareRelationship
		if err := rows.Scan(&r.ID, &r.ElderlyID, &r.CaregiverID, &r.RelationshipType, &r.Status,
			&r.CaregiverName, &r.CaregiverEmail); err != nil {
			return nil, fmt.Errorf("failed to scan care relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
