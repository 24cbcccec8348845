// Package alerts creates emergency alerts with deduplication and a daily
// notification cap, and manages their lifecycle.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/metrics"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/utils"
)

// ErrInvalidTransition is returned when an alert would leave a terminal status.
var ErrInvalidTransition = errors.New("alert status cannot change once resolved")

type Store interface {
	WithinUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error
	FindRecentAlert(ctx context.Context, userID uuid.UUID, alertType models.AlertType, since time.Time) (*models.EmergencyAlert, error)
	CountAlertsSince(ctx context.Context, userID uuid.UUID, since time.Time, excludeType models.AlertType) (int, error)
	CreateAlert(ctx context.Context, a *models.EmergencyAlert) error
	GetAlert(ctx context.Context, id uuid.UUID) (models.EmergencyAlert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID, status models.AlertStatus, resolvedBy *uuid.UUID, at time.Time) (models.EmergencyAlert, error)
	ListAlerts(ctx context.Context, userID uuid.UUID, f models.AlertFilter) ([]models.EmergencyAlert, int, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// Dispatcher accepts alerts whose contacts should be notified.
type Dispatcher interface {
	QueueTask(task models.Task)
}

// Broadcaster pushes alert changes to live sessions.
type Broadcaster interface {
	BroadcastAlert(alert models.EmergencyAlert)
}

type Settings struct {
	DailyLimit        int
	DedupWindow       time.Duration
	UrgentDedupWindow time.Duration
	Location          *time.Location
}

// Options control one creation path.
type Options struct {
	Priority       models.Priority
	DedupWindow    time.Duration
	BypassDailyCap bool
}

// Result describes what CreateAlert did.
type Result struct {
	Alert          models.EmergencyAlert `json:"alert"`
	Duplicate      bool                  `json:"duplicate"`
	NotifyContacts bool                  `json:"notify_contacts"`
}

type Manager struct {
	store       Store
	dispatcher  Dispatcher
	broadcaster Broadcaster
	settings    Settings
	logger      *logging.Logger
	now         func() time.Time
}

func NewManager(store Store, dispatcher Dispatcher, broadcaster Broadcaster, settings Settings, logger *logging.Logger) *Manager {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Manager{
		store:       store,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		settings:    settings,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateAlert raises an alert on the standard path: a repeat of the same type
// within the dedup window returns the existing alert, and once the user's
// daily limit is reached new alerts are stored without notifying contacts.
func (m *Manager) CreateAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*Result, error) {
	return m.create(ctx, userID, in, Options{
		Priority:    models.PriorityNormal,
		DedupWindow: m.settings.DedupWindow,
	})
}

// CreateUrgentAlert raises a high-priority alert that always notifies contacts.
func (m *Manager) CreateUrgentAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*Result, error) {
	return m.create(ctx, userID, in, Options{
		Priority:       models.PriorityUrgent,
		DedupWindow:    m.settings.UrgentDedupWindow,
		BypassDailyCap: true,
	})
}

func (m *Manager) create(ctx context.Context, userID uuid.UUID, in models.AlertInput, opts Options) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user := m.lookupUser(ctx, userID)
	now := m.now().UTC()
	res := &Result{}

	err := m.store.WithinUserLock(ctx, userID, func(ctx context.Context) error {
		existing, err := m.store.FindRecentAlert(ctx, userID, in.AlertType, now.Add(-opts.DedupWindow))
		if err != nil {
			return err
		}
		if existing != nil && foldsInto(opts, existing) {
			res.Alert = *existing
			res.Duplicate = true
			return nil
		}

		res.NotifyContacts = true
		if in.AlertType != models.AlertSensorDetected && !opts.BypassDailyCap {
			midnight := utils.StartOfDay(now, user.Location(m.settings.Location))
			count, err := m.store.CountAlertsSince(ctx, userID, midnight, models.AlertSensorDetected)
			if err != nil {
				return err
			}
			if count >= m.settings.DailyLimit {
				res.NotifyContacts = false
			}
		}

		res.Alert = models.EmergencyAlert{
			ID:          uuid.New(),
			UserID:      userID,
			AlertType:   in.AlertType,
			Message:     in.Message,
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Address:     in.Address,
			Severity:    in.Severity,
			Status:      models.AlertActive,
			Priority:    opts.Priority,
			Metadata:    in.Metadata,
			TriggeredAt: now,
		}
		if res.Alert.Message == "" {
			res.Alert.Message = defaultMessage(in.AlertType)
		}
		return m.store.CreateAlert(ctx, &res.Alert)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s alert: %w", in.AlertType, err)
	}

	log := m.logger.With(logrus.Fields{
		"user_id":    userID,
		"alert_id":   res.Alert.ID,
		"alert_type": in.AlertType,
		"priority":   opts.Priority,
	})

	if res.Duplicate {
		metrics.AlertsDeduplicated.WithLabelValues(string(in.AlertType)).Inc()
		log.Infof("Duplicate alert within %s, returning existing", opts.DedupWindow)
		return res, nil
	}

	metrics.AlertsCreated.WithLabelValues(string(in.AlertType), string(opts.Priority)).Inc()
	if m.broadcaster != nil {
		m.broadcaster.BroadcastAlert(res.Alert)
	}

	if !res.NotifyContacts {
		metrics.AlertsCapped.WithLabelValues(string(in.AlertType)).Inc()
		log.Warnf("Daily alert limit of %d reached, contacts not notified", m.settings.DailyLimit)
		return res, nil
	}

	m.dispatcher.QueueTask(models.Task{Alert: res.Alert, User: user, QueuedAt: now})
	log.Infof("Alert created")
	return res, nil
}

// foldsInto reports whether a new alert is a duplicate of existing. An urgent
// alert only folds into one that is itself urgent or already reached contacts.
func foldsInto(opts Options, existing *models.EmergencyAlert) bool {
	if opts.Priority != models.PriorityUrgent {
		return true
	}
	return existing.Priority == models.PriorityUrgent || existing.ContactsNotified
}

// UpdateAlertStatus moves an alert owned by userID to status. Leaving a
// terminal status is rejected; repeating the current status is a no-op.
func (m *Manager) UpdateAlertStatus(ctx context.Context, userID, alertID uuid.UUID, upd models.AlertStatusUpdate) (models.EmergencyAlert, error) {
	if !upd.Status.Valid() {
		return models.EmergencyAlert{}, &models.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", upd.Status)}
	}

	current, err := m.GetAlert(ctx, userID, alertID)
	if err != nil {
		return models.EmergencyAlert{}, err
	}
	if current.Status == upd.Status {
		return current, nil
	}
	if current.Status.Terminal() {
		return models.EmergencyAlert{}, ErrInvalidTransition
	}

	resolvedBy := upd.ResolvedBy
	if resolvedBy == nil {
		resolvedBy = &userID
	}
	updated, err := m.store.ResolveAlert(ctx, alertID, upd.Status, resolvedBy, m.now().UTC())
	if errors.Is(err, models.ErrNotFound) {
		// resolved concurrently
		return models.EmergencyAlert{}, ErrInvalidTransition
	}
	if err != nil {
		return models.EmergencyAlert{}, err
	}

	m.logger.With(logrus.Fields{"user_id": userID, "alert_id": alertID}).
		Infof("Alert moved from %s to %s", current.Status, updated.Status)
	if m.broadcaster != nil {
		m.broadcaster.BroadcastAlert(updated)
	}
	return updated, nil
}

// GetAlert returns the alert when it belongs to userID.
func (m *Manager) GetAlert(ctx context.Context, userID, alertID uuid.UUID) (models.EmergencyAlert, error) {
	a, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return models.EmergencyAlert{}, err
	}
	if a.UserID != userID {
		return models.EmergencyAlert{}, models.ErrNotFound
	}
	return a, nil
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (m *Manager) ListAlerts(ctx context.Context, userID uuid.UUID, f models.AlertFilter) ([]models.EmergencyAlert, int, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return m.store.ListAlerts(ctx, userID, f)
}

func (m *Manager) lookupUser(ctx context.Context, userID uuid.UUID) models.User {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		m.logger.Warnf("No profile for user %s, using defaults: %v", userID, err)
		return models.User{ID: userID}
	}
	return user
}

func defaultMessage(t models.AlertType) string {
	switch t {
	case models.AlertSOS:
		return "SOS triggered"
	case models.AlertGeofenceExit:
		return "Left a safe zone"
	case models.AlertGeofenceEnter:
		return "Entered a monitored zone"
	case models.AlertHealthAnomaly:
		return "Critical vital signs detected"
	case models.AlertInactivityDetected:
		return "No activity detected"
	case models.AlertSensorDetected:
		return "Unusual sensor reading"
	}
	return "Emergency alert"
}
