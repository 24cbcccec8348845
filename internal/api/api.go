// Package api exposes the HTTP surface of the service: sample ingestion,
// safe zone and contact management, alert lifecycle, history and the live
// alert feed.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safezone-alert-service/internal/alerts"
	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/services"
)

type SampleProcessor interface {
	Process(ctx context.Context, userID uuid.UUID, in models.SampleInput, source string) (*services.ProcessResult, error)
}

type ZoneTracker interface {
	ResetUser(ctx context.Context, userID uuid.UUID) error
	ForgetZone(ctx context.Context, zoneID uuid.UUID) error
}

type AlertService interface {
	CreateAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*alerts.Result, error)
	CreateUrgentAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*alerts.Result, error)
	UpdateAlertStatus(ctx context.Context, userID, alertID uuid.UUID, upd models.AlertStatusUpdate) (models.EmergencyAlert, error)
	GetAlert(ctx context.Context, userID, alertID uuid.UUID) (models.EmergencyAlert, error)
	ListAlerts(ctx context.Context, userID uuid.UUID, f models.AlertFilter) ([]models.EmergencyAlert, int, error)
}

type NotificationHistory interface {
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.NotificationAttempt, error)
}

// Store is the slice of persistence the handlers use directly.
type Store interface {
	CreateSafeZone(ctx context.Context, z *models.SafeZone) error
	GetSafeZone(ctx context.Context, userID, id uuid.UUID) (models.SafeZone, error)
	ListSafeZones(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.SafeZone, error)
	UpdateSafeZone(ctx context.Context, z *models.SafeZone) error
	DeactivateSafeZone(ctx context.Context, userID, id uuid.UUID) error

	CreateContact(ctx context.Context, c *models.EmergencyContact) error
	GetContact(ctx context.Context, userID, id uuid.UUID) (models.EmergencyContact, error)
	ListContacts(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.EmergencyContact, error)
	UpdateContact(ctx context.Context, c *models.EmergencyContact) error
	DeactivateContact(ctx context.Context, userID, id uuid.UUID) error

	ListLocationEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LocationEvent, error)
}

type LiveFeed interface {
	Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID)
}

// Pinger is a dependency reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps groups the collaborators of Handler.
type Deps struct {
	Store         Store
	Pipeline      SampleProcessor
	Tracker       ZoneTracker
	Alerts        AlertService
	Notifications NotificationHistory
	Feed          LiveFeed
	Pingers       map[string]Pinger
}

type Handler struct {
	Deps
	logger *logging.Logger
}

func NewHandler(deps Deps, logger *logging.Logger) *Handler {
	return &Handler{Deps: deps, logger: logger}
}

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type page struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, response{Success: false, Error: msg})
}

// respondError maps domain errors to HTTP statuses. Unknown errors are
// logged and hidden behind a generic message.
func (h *Handler) respondError(c *gin.Context, action string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrNotFound):
		fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, alerts.ErrInvalidTransition):
		fail(c, http.StatusConflict, err.Error())
	default:
		h.logger.Errorf("Failed to %s: %v", action, err)
		fail(c, http.StatusInternalServerError, "failed to "+action)
	}
}

func (h *Handler) bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.logger.Debugf("Invalid request body for %s: %v", c.FullPath(), err)
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func paging(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}
