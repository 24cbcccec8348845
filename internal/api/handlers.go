package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safezone-alert-service/internal/alerts"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/services"
)

const healthTimeout = 2 * time.Second

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.Pingers))
	healthy := true
	for name, p := range h.Pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warnf("Health check %s failed: %v", name, err)
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, state := http.StatusOK, "ok"
	if !healthy {
		status, state = http.StatusServiceUnavailable, "degraded"
	}
	c.JSON(status, response{Success: healthy, Data: gin.H{"status": state, "checks": checks}})
}

// IngestSample runs one device sample through the pipeline. When an alert
// could not be stored the caller gets a 500 with the partial result and may
// resend the sample; other collaborator failures are logged and the partial
// result is returned.
func (h *Handler) IngestSample(c *gin.Context) {
	var in models.SampleInput
	if !h.bindJSON(c, &in) {
		return
	}
	userID := currentUser(c)
	res, err := h.Pipeline.Process(c.Request.Context(), userID, in, "http")
	if res == nil {
		h.respondError(c, "process sample", err)
		return
	}
	if errors.Is(err, services.ErrAlertNotRaised) {
		h.logger.Errorf("Sample for user %s lost an alert: %v", userID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response{Success: false, Data: res, Error: "failed to raise alert"})
		return
	}
	if err != nil {
		h.logger.Warnf("Sample for user %s processed with errors: %v", userID, err)
	}
	ok(c, http.StatusOK, res)
}

func (h *Handler) ResetTracking(c *gin.Context) {
	userID := currentUser(c)
	if err := h.Tracker.ResetUser(c.Request.Context(), userID); err != nil {
		h.respondError(c, "reset tracking", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"reset": true})
}

func (h *Handler) ListSafeZones(c *gin.Context) {
	activeOnly := c.Query("include_inactive") != "true"
	zones, err := h.Store.ListSafeZones(c.Request.Context(), currentUser(c), activeOnly)
	if err != nil {
		h.respondError(c, "list safe zones", err)
		return
	}
	if zones == nil {
		zones = []models.SafeZone{}
	}
	ok(c, http.StatusOK, zones)
}

func (h *Handler) CreateSafeZone(c *gin.Context) {
	var req models.SafeZoneCreate
	if !h.bindJSON(c, &req) {
		return
	}
	zone := req.ToZone(currentUser(c))
	if err := zone.Validate(); err != nil {
		h.respondError(c, "create safe zone", err)
		return
	}
	if err := h.Store.CreateSafeZone(c.Request.Context(), &zone); err != nil {
		h.respondError(c, "create safe zone", err)
		return
	}
	h.logger.Infof("Created safe zone %s for user %s", zone.ID, zone.UserID)
	ok(c, http.StatusCreated, zone)
}

func (h *Handler) GetSafeZone(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	zone, err := h.Store.GetSafeZone(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, "get safe zone", err)
		return
	}
	ok(c, http.StatusOK, zone)
}

// UpdateSafeZone applies a partial update. Moving or resizing a zone drops
// its membership state so the next sample re-initializes it.
func (h *Handler) UpdateSafeZone(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req models.SafeZoneUpdate
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	zone, err := h.Store.GetSafeZone(ctx, currentUser(c), id)
	if err != nil {
		h.respondError(c, "update safe zone", err)
		return
	}
	before := zone
	req.Apply(&zone)
	if err := zone.Validate(); err != nil {
		h.respondError(c, "update safe zone", err)
		return
	}
	if err := h.Store.UpdateSafeZone(ctx, &zone); err != nil {
		h.respondError(c, "update safe zone", err)
		return
	}

	moved := before.CenterLatitude != zone.CenterLatitude ||
		before.CenterLongitude != zone.CenterLongitude ||
		before.RadiusMeters != zone.RadiusMeters
	if moved || !zone.IsActive {
		if err := h.Tracker.ForgetZone(ctx, zone.ID); err != nil {
			h.logger.Warnf("Failed to reset membership for zone %s: %v", zone.ID, err)
		}
	}
	ok(c, http.StatusOK, zone)
}

func (h *Handler) DeleteSafeZone(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.DeactivateSafeZone(ctx, currentUser(c), id); err != nil {
		h.respondError(c, "delete safe zone", err)
		return
	}
	if err := h.Tracker.ForgetZone(ctx, id); err != nil {
		h.logger.Warnf("Failed to reset membership for zone %s: %v", id, err)
	}
	ok(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) ListAlerts(c *gin.Context) {
	limit, offset := paging(c)
	f := models.AlertFilter{
		Status: models.AlertStatus(c.Query("status")),
		Type:   models.AlertType(c.Query("type")),
		Limit:  limit,
		Offset: offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		fail(c, http.StatusBadRequest, "invalid status filter")
		return
	}
	if f.Type != "" && !f.Type.Valid() {
		fail(c, http.StatusBadRequest, "invalid type filter")
		return
	}

	list, total, err := h.Alerts.ListAlerts(c.Request.Context(), currentUser(c), f)
	if err != nil {
		h.respondError(c, "list alerts", err)
		return
	}
	if list == nil {
		list = []models.EmergencyAlert{}
	}
	ok(c, http.StatusOK, page{Items: list, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) CreateAlert(c *gin.Context) {
	h.createAlert(c, h.Alerts.CreateAlert)
}

// CreateUrgentAlert raises an alert that skips the daily cap and always
// notifies contacts.
func (h *Handler) CreateUrgentAlert(c *gin.Context) {
	h.createAlert(c, h.Alerts.CreateUrgentAlert)
}

type createFunc func(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*alerts.Result, error)

func (h *Handler) createAlert(c *gin.Context, create createFunc) {
	var in models.AlertInput
	if !h.bindJSON(c, &in) {
		return
	}
	res, err := create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		h.respondError(c, "create alert", err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	ok(c, status, res)
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	alert, err := h.Alerts.GetAlert(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, "get alert", err)
		return
	}
	ok(c, http.StatusOK, alert)
}

func (h *Handler) UpdateAlertStatus(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req models.AlertStatusUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	alert, err := h.Alerts.UpdateAlertStatus(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		h.respondError(c, "update alert status", err)
		return
	}
	ok(c, http.StatusOK, alert)
}

func (h *Handler) ListContacts(c *gin.Context) {
	activeOnly := c.Query("include_inactive") != "true"
	contacts, err := h.Store.ListContacts(c.Request.Context(), currentUser(c), activeOnly)
	if err != nil {
		h.respondError(c, "list contacts", err)
		return
	}
	if contacts == nil {
		contacts = []models.EmergencyContact{}
	}
	ok(c, http.StatusOK, contacts)
}

func (h *Handler) CreateContact(c *gin.Context) {
	var req models.ContactCreate
	if !h.bindJSON(c, &req) {
		return
	}
	contact := req.ToContact(currentUser(c))
	if err := contact.Validate(); err != nil {
		h.respondError(c, "create contact", err)
		return
	}
	if err := h.Store.CreateContact(c.Request.Context(), &contact); err != nil {
		h.respondError(c, "create contact", err)
		return
	}
	h.logger.Infof("Created emergency contact %s for user %s", contact.ID, contact.UserID)
	ok(c, http.StatusCreated, contact)
}

func (h *Handler) UpdateContact(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req models.ContactUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	contact, err := h.Store.GetContact(ctx, currentUser(c), id)
	if err != nil {
		h.respondError(c, "update contact", err)
		return
	}
	req.Apply(&contact)
	if err := contact.Validate(); err != nil {
		h.respondError(c, "update contact", err)
		return
	}
	if err := h.Store.UpdateContact(ctx, &contact); err != nil {
		h.respondError(c, "update contact", err)
		return
	}
	ok(c, http.StatusOK, contact)
}

func (h *Handler) DeleteContact(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.Store.DeactivateContact(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, "delete contact", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	limit, offset := paging(c)
	attempts, err := h.Notifications.History(c.Request.Context(), currentUser(c), limit, offset)
	if err != nil {
		h.respondError(c, "list notifications", err)
		return
	}
	if attempts == nil {
		attempts = []models.NotificationAttempt{}
	}
	ok(c, http.StatusOK, attempts)
}

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

func (h *Handler) ListLocationEvents(c *gin.Context) {
	limit, offset := paging(c)
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	if offset < 0 {
		offset = 0
	}
	events, err := h.Store.ListLocationEvents(c.Request.Context(), currentUser(c), limit, offset)
	if err != nil {
		h.respondError(c, "list location events", err)
		return
	}
	if events == nil {
		events = []models.LocationEvent{}
	}
	ok(c, http.StatusOK, events)
}

func (h *Handler) LiveFeed(c *gin.Context) {
	if h.Feed == nil {
		fail(c, http.StatusServiceUnavailable, "live feed unavailable")
		return
	}
	h.Feed.Serve(c.Writer, c.Request, currentUser(c))
}
