package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/models"
)

type InactivityStore interface {
	ListInactiveUsers(ctx context.Context, lookback, quietSince time.Time) ([]uuid.UUID, error)
	FindRecentAlert(ctx context.Context, userID uuid.UUID, alertType models.AlertType, since time.Time) (*models.EmergencyAlert, error)
}

// InactivitySweep periodically raises inactivity alerts for users whose
// devices keep reporting but record no steps for a whole window.
type InactivitySweep struct {
	store    InactivityStore
	alerts   AlertCreator
	window   time.Duration
	lookback time.Duration
	cron     *cron.Cron
	logger   *logging.Logger
	now      func() time.Time
}

func NewInactivitySweep(store InactivityStore, creator AlertCreator, window, lookback time.Duration, loc *time.Location, logger *logging.Logger) *InactivitySweep {
	if loc == nil {
		loc = time.UTC
	}
	cronLog := cron.PrintfLogger(logger)
	return &InactivitySweep{
		store:    store,
		alerts:   creator,
		window:   window,
		lookback: lookback,
		cron:     cron.New(cron.WithLocation(loc), cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog))),
		logger:   logger,
		now:      time.Now,
	}
}

// Schedule registers the sweep under a standard five-field cron expression.
func (s *InactivitySweep) Schedule(expr string) error {
	_, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Run(ctx); err != nil {
			s.logger.Errorf("Inactivity sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid inactivity schedule %q: %w", expr, err)
	}
	return nil
}

func (s *InactivitySweep) Start() { s.cron.Start() }

// Stop waits for a running sweep to finish.
func (s *InactivitySweep) Stop() { <-s.cron.Stop().Done() }

// Run performs one sweep and returns the number of alerts that were newly created.
func (s *InactivitySweep) Run(ctx context.Context) (int, error) {
	now := s.now().UTC()
	users, err := s.store.ListInactiveUsers(ctx, now.Add(-s.lookback), now.Add(-s.window))
	if err != nil {
		return 0, err
	}

	created := 0
	var errs []error
	for _, userID := range users {
		// one alert per quiet window
		if prev, err := s.store.FindRecentAlert(ctx, userID, models.AlertInactivityDetected, now.Add(-s.window)); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		} else if prev != nil {
			continue
		}

		res, err := s.alerts.CreateAlert(ctx, userID, models.AlertInput{
			AlertType: models.AlertInactivityDetected,
			Message:   fmt.Sprintf("No steps recorded in the last %s", s.window),
			Severity:  models.SeverityMedium,
			Metadata:  map[string]interface{}{"window_minutes": int(s.window.Minutes())},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if !res.Duplicate {
			created++
		}
	}
	if len(users) > 0 {
		s.logger.Infof("Inactivity sweep: %d inactive users, %d new alerts", len(users), created)
	}
	return created, errors.Join(errs...)
}
