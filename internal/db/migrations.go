package db

import (
	"context"
	"fmt"
)

type migration struct {
	version int
	sql     string
}

// migrations must stay ordered; versions start at 1.
// users and care_relationships belong to the account service and are only
// created here when missing so a fresh database is usable.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id       UUID PRIMARY KEY,
	name     TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT 'elderly',
	email    TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS care_relationships (
	id                UUID PRIMARY KEY,
	elderly_id        UUID NOT NULL REFERENCES users(id),
	caregiver_id      UUID NOT NULL REFERENCES users(id),
	relationship_type TEXT NOT NULL DEFAULT 'caregiver',
	status            TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS safe_zones (
	id                   UUID PRIMARY KEY,
	user_id              UUID NOT NULL,
	name                 TEXT NOT NULL,
	zone_type            TEXT NOT NULL DEFAULT 'safe',
	center_latitude      DOUBLE PRECISION NOT NULL CHECK (center_latitude BETWEEN -90 AND 90),
	center_longitude     DOUBLE PRECISION NOT NULL CHECK (center_longitude BETWEEN -180 AND 180),
	radius_meters        DOUBLE PRECISION NOT NULL CHECK (radius_meters > 0),
	alert_on_enter       BOOLEAN NOT NULL DEFAULT FALSE,
	alert_on_exit        BOOLEAN NOT NULL DEFAULT TRUE,
	notification_message TEXT NOT NULL DEFAULT '',
	is_active            BOOLEAN NOT NULL DEFAULT TRUE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS zone_membership (
	user_id        UUID NOT NULL,
	zone_id        UUID NOT NULL REFERENCES safe_zones(id) ON DELETE CASCADE,
	inside         BOOLEAN NOT NULL,
	last_sample_at TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, zone_id)
);

CREATE TABLE IF NOT EXISTS location_events (
	id                   UUID PRIMARY KEY,
	user_id              UUID NOT NULL,
	zone_id              UUID,
	event_type           TEXT NOT NULL,
	latitude             DOUBLE PRECISION NOT NULL,
	longitude            DOUBLE PRECISION NOT NULL,
	accuracy             DOUBLE PRECISION,
	distance_from_center DOUBLE PRECISION,
	triggered_alert      BOOLEAN NOT NULL DEFAULT FALSE,
	alert_id             UUID,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS emergency_alerts (
	id                UUID PRIMARY KEY,
	user_id           UUID NOT NULL,
	alert_type        TEXT NOT NULL,
	message           TEXT NOT NULL DEFAULT '',
	latitude          DOUBLE PRECISION,
	longitude         DOUBLE PRECISION,
	address           TEXT,
	severity          TEXT NOT NULL DEFAULT 'medium',
	status            TEXT NOT NULL DEFAULT 'active',
	priority          TEXT NOT NULL DEFAULT 'normal',
	contacts_notified BOOLEAN NOT NULL DEFAULT FALSE,
	metadata          JSONB NOT NULL DEFAULT '{}',
	triggered_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	resolved_at       TIMESTAMPTZ,
	resolved_by       UUID
);

CREATE TABLE IF NOT EXISTS emergency_contacts (
	id               UUID PRIMARY KEY,
	user_id          UUID NOT NULL,
	name             TEXT NOT NULL,
	relationship     TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	push_token       TEXT NOT NULL DEFAULT '',
	telegram_chat_id BIGINT NOT NULL DEFAULT 0,
	is_primary       BOOLEAN NOT NULL DEFAULT FALSE,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notification_attempts (
	id             UUID PRIMARY KEY,
	alert_id       UUID NOT NULL REFERENCES emergency_alerts(id),
	user_id        UUID NOT NULL,
	contact_id     UUID,
	recipient_name TEXT NOT NULL DEFAULT '',
	route          TEXT NOT NULL,
	channels       JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sensor_samples (
	id            UUID PRIMARY KEY,
	user_id       UUID NOT NULL,
	heart_rate    INTEGER,
	step_count    INTEGER,
	battery_level INTEGER,
	accuracy      DOUBLE PRECISION,
	recorded_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_safe_zones_user ON safe_zones(user_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_location_events_user_created ON location_events(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_user_type_triggered ON emergency_alerts(user_id, alert_type, triggered_at DESC);
CREATE INDEX IF NOT EXISTS idx_contacts_user ON emergency_contacts(user_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_attempts_user_created ON notification_attempts(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sensor_samples_user_recorded ON sensor_samples(user_id, recorded_at DESC);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_care_relationships_elderly
	ON care_relationships(elderly_id) WHERE status = 'accepted';

CREATE INDEX IF NOT EXISTS idx_attempts_alert
	ON notification_attempts(alert_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}

// Migrate applies outstanding migrations in order.
func (d *DB) Migrate(ctx context.Context) error {
	currentVersion := 0

	var exists bool
	err := d.Pool.QueryRow(ctx, `SELECT to_regclass('schema_version') IS NOT NULL`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists {
		if err := d.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&currentVersion); err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := d.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
		}
	}
	return nil
}
