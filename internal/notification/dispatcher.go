// Package notification fans alerts out to a user's contacts over every
// available channel and records the per-channel outcome of each attempt.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/metrics"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/providers"
	"safezone-alert-service/internal/ratelimit"
)

type Store interface {
	ListContacts(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.EmergencyContact, error)
	ListAcceptedCaregivers(ctx context.Context, elderlyID uuid.UUID) ([]models.CareRelationship, error)
	CreateNotificationAttempt(ctx context.Context, a *models.NotificationAttempt) error
	SetContactsNotified(ctx context.Context, alertID uuid.UUID, notified bool) error
	ListNotificationAttempts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.NotificationAttempt, error)
}

type Settings struct {
	QueueSize      int
	MaxWorkers     int
	SMSDailyCap    int
	EmailDailyCap  int
	SensorCooldown time.Duration
	GatewayTimeout time.Duration
	// PhoneRegion is the ISO region for contact numbers stored without a
	// country code.
	PhoneRegion string
}

// Dispatcher processes queued alert Tasks with a pool of workers.
type Dispatcher struct {
	store     Store
	limiter   ratelimit.Limiter
	providers map[models.Channel]providers.Provider
	settings  Settings
	logger    *logging.Logger
	tasks     chan models.Task
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
	now       func() time.Time
}

func New(store Store, limiter ratelimit.Limiter, gateways map[models.Channel]providers.Provider, settings Settings, logger *logging.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	if settings.GatewayTimeout <= 0 {
		settings.GatewayTimeout = 15 * time.Second
	}
	return &Dispatcher{
		store:     store,
		limiter:   limiter,
		providers: gateways,
		settings:  settings,
		logger:    logger,
		tasks:     make(chan models.Task, settings.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		wg:        &sync.WaitGroup{},
		now:       time.Now,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(wg *sync.WaitGroup) {
	d.wg = wg
	for i := 0; i < d.settings.MaxWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop signals the workers to exit once their current task is done.
func (d *Dispatcher) Stop() {
	d.cancel()
}

// QueueTask enqueues a Task. When the queue is full an urgent task is
// dispatched on its own goroutine; any other task is dropped.
func (d *Dispatcher) QueueTask(task models.Task) {
	select {
	case d.tasks <- task:
		d.logger.Debugf("Queued dispatch for alert %s", task.Alert.ID)
	default:
		if task.Alert.Priority == models.PriorityUrgent {
			d.logger.Warnf("Queue full, dispatching urgent alert %s directly", task.Alert.ID)
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.handleTask(task)
			}()
			return
		}
		metrics.DispatchQueueDropped.Inc()
		d.logger.Errorf("Queue full, dropping dispatch for alert %s", task.Alert.ID)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Infof("Dispatch worker %d stopped", id)
			return
		case task := <-d.tasks:
			d.handleTask(task)
		}
	}
}

func (d *Dispatcher) handleTask(task models.Task) {
	// a page already started is finished even during shutdown
	ctx := context.WithoutCancel(d.ctx)
	if _, err := d.NotifyContacts(ctx, task.User, task.Alert); err != nil {
		d.logger.Errorf("Dispatch for alert %s failed: %v", task.Alert.ID, err)
	}
}

// NotifyContacts delivers alert to every recipient of user concurrently and
// persists one attempt per recipient. Channel failures are recorded in the
// attempts; only a failure to resolve recipients is returned as an error.
func (d *Dispatcher) NotifyContacts(ctx context.Context, user models.User, alert models.EmergencyAlert) ([]models.NotificationAttempt, error) {
	start := time.Now()
	defer func() { metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()

	log := d.logger.With(logrus.Fields{"alert_id": alert.ID, "user_id": alert.UserID, "alert_type": alert.AlertType})
	if user.ID == uuid.Nil {
		user.ID = alert.UserID
	}

	recipients, err := d.recipients(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		log.Warnf("No recipients for alert")
		d.markNotified(ctx, alert.ID, false)
		return nil, nil
	}

	coolingDown := false
	if alert.AlertType == models.AlertSensorDetected {
		ok, err := d.limiter.Cooldown(ctx, "sensor:"+alert.UserID.String(), d.settings.SensorCooldown)
		if err != nil {
			log.Warnf("Cooldown check failed, dispatching anyway: %v", err)
			ok = true
		}
		coolingDown = !ok
	}

	msg := compose(user, alert)
	attempts := make([]models.NotificationAttempt, len(recipients))
	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r recipient) {
			defer wg.Done()
			attempts[i] = d.notifyRecipient(ctx, alert, r, msg, coolingDown)
		}(i, r)
	}
	wg.Wait()

	notified := false
	for i := range attempts {
		if err := d.store.CreateNotificationAttempt(ctx, &attempts[i]); err != nil {
			log.Errorf("Failed to record attempt for %s: %v", attempts[i].RecipientName, err)
		}
		if attempts[i].Succeeded() {
			notified = true
		}
	}
	d.markNotified(ctx, alert.ID, notified)

	log.Infof("Dispatched to %d recipients, delivered=%t", len(attempts), notified)
	return attempts, nil
}

func (d *Dispatcher) markNotified(ctx context.Context, alertID uuid.UUID, notified bool) {
	if err := d.store.SetContactsNotified(ctx, alertID, notified); err != nil {
		d.logger.Errorf("Failed to update contacts_notified for alert %s: %v", alertID, err)
	}
}

func (d *Dispatcher) notifyRecipient(ctx context.Context, alert models.EmergencyAlert, r recipient, msg providers.Message, coolingDown bool) models.NotificationAttempt {
	attempt := models.NotificationAttempt{
		ID:            uuid.New(),
		AlertID:       alert.ID,
		UserID:        alert.UserID,
		ContactID:     r.contactID,
		RecipientName: r.name,
		Route:         r.route,
		Channels:      make(map[models.Channel]models.ChannelOutcome, len(models.Channels)),
		CreatedAt:     d.now().UTC(),
	}
	for _, ch := range models.Channels {
		outcome := d.deliver(ctx, ch, alert, r, msg, coolingDown)
		attempt.Channels[ch] = outcome
		metrics.NotificationOutcomes.WithLabelValues(string(ch), string(outcome.Status)).Inc()
		if outcome.Status == models.OutcomeFailed {
			d.logger.With(logrus.Fields{"alert_id": alert.ID, "channel": ch, "recipient": r.name}).
				Warnf("Delivery failed: %s", outcome.Reason)
		}
	}
	return attempt
}

func (d *Dispatcher) deliver(ctx context.Context, ch models.Channel, alert models.EmergencyAlert, r recipient, msg providers.Message, coolingDown bool) models.ChannelOutcome {
	to := r.address(ch)
	if to == "" {
		return skipped("no %s address", ch)
	}
	if coolingDown {
		return models.ChannelOutcome{Status: models.OutcomeThrottled, Reason: "sensor alert cooldown active"}
	}
	if ch == models.ChannelSMS {
		if alert.AlertType == models.AlertSensorDetected {
			return skipped("sms is not used for sensor alerts")
		}
		phone, err := NormalizePhone(to, d.settings.PhoneRegion)
		if err != nil {
			return skipped("%v", err)
		}
		to = phone
	}

	provider, ok := d.providers[ch]
	if !ok {
		return skipped("%s channel not configured", ch)
	}

	if limit := d.dailyCap(ch); limit > 0 {
		allowed, err := d.limiter.Allow(ctx, string(ch), limit)
		if err != nil {
			d.logger.Errorf("Quota check for %s failed: %v", ch, err)
			return models.ChannelOutcome{Status: models.OutcomeFailed, Reason: "quota store unavailable"}
		}
		if !allowed {
			return models.ChannelOutcome{Status: models.OutcomeThrottled, Reason: fmt.Sprintf("daily %s quota of %d reached", ch, limit)}
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.settings.GatewayTimeout)
	defer cancel()
	if err := provider.Send(sendCtx, to, msg); err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("gateway timeout after %s", d.settings.GatewayTimeout)
		}
		return models.ChannelOutcome{Status: models.OutcomeFailed, Reason: reason}
	}
	return models.ChannelOutcome{Status: models.OutcomeSuccess}
}

func (d *Dispatcher) dailyCap(ch models.Channel) int {
	switch ch {
	case models.ChannelSMS:
		return d.settings.SMSDailyCap
	case models.ChannelEmail:
		return d.settings.EmailDailyCap
	}
	return 0
}

func skipped(format string, args ...interface{}) models.ChannelOutcome {
	return models.ChannelOutcome{Status: models.OutcomeSkipped, Reason: fmt.Sprintf(format, args...)}
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// History returns the user's most recent notification attempts.
func (d *Dispatcher) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.NotificationAttempt, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return d.store.ListNotificationAttempts(ctx, userID, limit, offset)
}
