package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"safezone-alert-service/internal/models"
)

const contactColumns = `
	id, user_id, name, relationship, phone, email, push_token, telegram_chat_id,
	is_primary, is_active, created_at, updated_at`

func scanContact(row pgx.Row) (models.EmergencyContact, error) {
	var c models.EmergencyContact
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Relationship, &c.Phone, &c.Email, &c.PushToken, &c.TelegramChatID,
		&c.IsPrimary, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (d *DB) CreateContact(ctx context.Context, c *models.EmergencyContact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := d.q(ctx).Exec(ctx, `
	INSERT INTO emergency_contacts (`+contactColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.UserID, c.Name, c.Relationship, c.Phone, c.Email, c.PushToken, c.TelegramChatID,
		c.IsPrimary, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

func (d *DB) GetContact(ctx context.Context, userID, id uuid.UUID) (models.EmergencyContact, error) {
	c, err := scanContact(d.q(ctx).QueryRow(ctx,
		`SELECT `+contactColumns+` FROM emergency_contacts WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to get contact %s: %w", id, notFound(err))
	}
	return c, nil
}

// ListContacts returns the user's contacts, primary contacts first.
func (d *DB) ListContacts(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.EmergencyContact, error) {
	query := `SELECT ` + contactColumns + ` FROM emergency_contacts WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY is_primary DESC, created_at ASC`

	rows, err := d.q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts for user %s: %w", userID, err)
	}
	defer rows.Close()

	var contacts []models.EmergencyContact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (d *DB) UpdateContact(ctx context.Context, c *models.EmergencyContact) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := d.q(ctx).Exec(ctx, `
	UPDATE emergency_contacts SET
		name = $3, relationship = $4, phone = $5, email = $6, push_token = $7,
		telegram_chat_id = $8, is_primary = $9, is_active = $10, updated_at = $11
	WHERE id = $1 AND user_id = $2`,
		c.ID, c.UserID, c.Name, c.Relationship, c.Phone, c.Email, c.PushToken,
		c.TelegramChatID, c.IsPrimary, c.IsActive, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update contact %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (d *DB) DeactivateContact(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := d.q(ctx).Exec(ctx,
		`UPDATE emergency_contacts SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate contact %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to deactivate contact %s: %w", id, ErrNotFound)
	}
	return nil
}
