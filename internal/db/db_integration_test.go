//go:build integration

package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safezone-alert-service/internal/models"
)

func getTestDB(t *testing.T) *DB {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DB_DSN not set")
	}
	d, err := New(dsn)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
	}
	ctx := context.Background()
	if err := d.Ping(ctx); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
	}
	require.NoError(t, d.Migrate(ctx))
	t.Cleanup(d.Close)
	return d
}

func TestMembership_RejectsOlderSample(t *testing.T) {
	d := getTestDB(t)
	ctx := context.Background()
	user := uuid.New()

	zone := &models.SafeZone{UserID: user, Name: "Home", ZoneType: models.ZoneSafe,
		CenterLatitude: 10, CenterLongitude: 10, RadiusMeters: 100, AlertOnExit: true, IsActive: true}
	require.NoError(t, d.CreateSafeZone(ctx, zone))

	now := time.Now().UTC().Truncate(time.Millisecond)
	ok, err := d.SaveMembership(ctx, models.ZoneMembership{UserID: user, ZoneID: zone.ID, Inside: true, LastSampleAt: now})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.SaveMembership(ctx, models.ZoneMembership{UserID: user, ZoneID: zone.ID, Inside: false, LastSampleAt: now.Add(-time.Minute)})
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := d.GetMembership(ctx, user, zone.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Inside)

	n, err := d.DeleteUserMemberships(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	m, err = d.GetMembership(ctx, user, zone.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestAlerts_RecentCountAndResolve(t *testing.T) {
	d := getTestDB(t)
	ctx := context.Background()
	user := uuid.New()

	a := &models.EmergencyAlert{UserID: user, AlertType: models.AlertSOS, Message: "help",
		Severity: models.SeverityHigh, Status: models.AlertActive, Priority: models.PriorityNormal,
		Metadata: map[string]interface{}{"source": "test"}}
	require.NoError(t, d.WithinUserLock(ctx, user, func(ctx context.Context) error {
		return d.CreateAlert(ctx, a)
	}))

	recent, err := d.FindRecentAlert(ctx, user, models.AlertSOS, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, a.ID, recent.ID)
	assert.Equal(t, "test", recent.Metadata["source"])

	n, err := d.CountAlertsSince(ctx, user, time.Now().Add(-time.Hour), models.AlertSensorDetected)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resolved, err := d.ResolveAlert(ctx, a.ID, models.AlertResolved, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = d.ResolveAlert(ctx, a.ID, models.AlertFalseAlarm, nil, time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}
