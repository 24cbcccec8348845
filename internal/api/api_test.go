package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"safezone-alert-service/internal/alerts"
	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/services"
)

type fakeStore struct {
	zones    map[uuid.UUID]models.SafeZone
	contacts map[uuid.UUID]models.EmergencyContact
	events   []models.LocationEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		zones:    map[uuid.UUID]models.SafeZone{},
		contacts: map[uuid.UUID]models.EmergencyContact{},
	}
}

func (s *fakeStore) CreateSafeZone(ctx context.Context, z *models.SafeZone) error {
	z.ID = uuid.New()
	s.zones[z.ID] = *z
	return nil
}

func (s *fakeStore) GetSafeZone(ctx context.Context, userID, id uuid.UUID) (models.SafeZone, error) {
	z, ok := s.zones[id]
	if !ok || z.UserID != userID {
		return models.SafeZone{}, models.ErrNotFound
	}
	return z, nil
}

func (s *fakeStore) ListSafeZones(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.SafeZone, error) {
	var out []models.SafeZone
	for _, z := range s.zones {
		if z.UserID == userID && (!activeOnly || z.IsActive) {
			out = append(out, z)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateSafeZone(ctx context.Context, z *models.SafeZone) error {
	s.zones[z.ID] = *z
	return nil
}

func (s *fakeStore) DeactivateSafeZone(ctx context.Context, userID, id uuid.UUID) error {
	z, err := s.GetSafeZone(ctx, userID, id)
	if err != nil {
		return err
	}
	z.IsActive = false
	s.zones[id] = z
	return nil
}

func (s *fakeStore) CreateContact(ctx context.Context, c *models.EmergencyContact) error {
	c.ID = uuid.New()
	s.contacts[c.ID] = *c
	return nil
}

func (s *fakeStore) GetContact(ctx context.Context, userID, id uuid.UUID) (models.EmergencyContact, error) {
	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return models.EmergencyContact{}, models.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) ListContacts(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.EmergencyContact, error) {
	var out []models.EmergencyContact
	for _, c := range s.contacts {
		if c.UserID == userID && (!activeOnly || c.IsActive) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateContact(ctx context.Context, c *models.EmergencyContact) error {
	s.contacts[c.ID] = *c
	return nil
}

func (s *fakeStore) DeactivateContact(ctx context.Context, userID, id uuid.UUID) error {
	c, err := s.GetContact(ctx, userID, id)
	if err != nil {
		return err
	}
	c.IsActive = false
	s.contacts[id] = c
	return nil
}

func (s *fakeStore) ListLocationEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LocationEvent, error) {
	return s.events, nil
}

type fakePipeline struct {
	process func(userID uuid.UUID, in models.SampleInput) (*services.ProcessResult, error)
}

func (p *fakePipeline) Process(ctx context.Context, userID uuid.UUID, in models.SampleInput, source string) (*services.ProcessResult, error) {
	return p.process(userID, in)
}

type fakeTracker struct {
	reset     []uuid.UUID
	forgotten []uuid.UUID
}

func (t *fakeTracker) ResetUser(ctx context.Context, userID uuid.UUID) error {
	t.reset = append(t.reset, userID)
	return nil
}

func (t *fakeTracker) ForgetZone(ctx context.Context, zoneID uuid.UUID) error {
	t.forgotten = append(t.forgotten, zoneID)
	return nil
}

type fakeAlerts struct {
	result    *alerts.Result
	err       error
	urgent    int
	updateErr error
}

func (a *fakeAlerts) CreateAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*alerts.Result, error) {
	return a.result, a.err
}

func (a *fakeAlerts) CreateUrgentAlert(ctx context.Context, userID uuid.UUID, in models.AlertInput) (*alerts.Result, error) {
	a.urgent++
	return a.result, a.err
}

func (a *fakeAlerts) UpdateAlertStatus(ctx context.Context, userID, alertID uuid.UUID, upd models.AlertStatusUpdate) (models.EmergencyAlert, error) {
	if a.updateErr != nil {
		return models.EmergencyAlert{}, a.updateErr
	}
	return models.EmergencyAlert{ID: alertID, UserID: userID, Status: upd.Status}, nil
}

func (a *fakeAlerts) GetAlert(ctx context.Context, userID, alertID uuid.UUID) (models.EmergencyAlert, error) {
	return models.EmergencyAlert{}, models.ErrNotFound
}

func (a *fakeAlerts) ListAlerts(ctx context.Context, userID uuid.UUID, f models.AlertFilter) ([]models.EmergencyAlert, int, error) {
	return nil, 0, nil
}

type fakeHistory struct{ limit int }

func (h *fakeHistory) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.NotificationAttempt, error) {
	h.limit = limit
	return nil, nil
}

type fixture struct {
	router   *gin.Engine
	store    *fakeStore
	tracker  *fakeTracker
	alerts   *fakeAlerts
	pipeline *fakePipeline
	user     uuid.UUID
}

func newFixture(t *testing.T, cfg RouterConfig, pingers map[string]Pinger) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		store:   newFakeStore(),
		tracker: &fakeTracker{},
		alerts:  &fakeAlerts{},
		pipeline: &fakePipeline{process: func(userID uuid.UUID, in models.SampleInput) (*services.ProcessResult, error) {
			s, err := in.ToSample(time.Now())
			if err != nil {
				return nil, err
			}
			return &services.ProcessResult{Sample: s}, nil
		}},
		user: uuid.New(),
	}
	h := NewHandler(Deps{
		Store:         f.store,
		Pipeline:      f.pipeline,
		Tracker:       f.tracker,
		Alerts:        f.alerts,
		Notifications: &fakeHistory{},
		Pingers:       pingers,
	}, logging.NewNop())
	f.router = NewRouter(h, cfg, logging.NewNop())
	return f
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userIDHeader, f.user.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, RouterConfig{}, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
	})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	f = newFixture(t, RouterConfig{}, map[string]Pinger{
		"redis": PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
}

func TestUserHeaderRequired(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/safe-zones", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/safe-zones", nil)
	req.Header.Set(userIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIKeyEnforcedWhenConfigured(t *testing.T) {
	f := newFixture(t, RouterConfig{APIKey: "secret"}, nil)

	w := f.do(http.MethodGet, "/api/v1/safe-zones", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/safe-zones", nil)
	req.Header.Set(userIDHeader, f.user.String())
	req.Header.Set(apiKeyHeader, "secret")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestSample(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)

	w := f.do(http.MethodPost, "/api/v1/samples", map[string]interface{}{"latitude": 95.0, "longitude": 10.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "latitude")

	w = f.do(http.MethodPost, "/api/v1/samples", map[string]interface{}{"latitude": 10.0, "longitude": 10.0})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotNil(t, body["data"])
}

func TestIngestSample_PartialFailureStillReturnsResult(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	f.pipeline.process = func(userID uuid.UUID, in models.SampleInput) (*services.ProcessResult, error) {
		return &services.ProcessResult{}, errors.New("zone store down")
	}
	w := f.do(http.MethodPost, "/api/v1/samples", map[string]interface{}{"latitude": 10.0, "longitude": 10.0})
	assert.Equal(t, http.StatusOK, w.Code)

	f.pipeline.process = func(userID uuid.UUID, in models.SampleInput) (*services.ProcessResult, error) {
		return nil, errors.New("boom")
	}
	w = f.do(http.MethodPost, "/api/v1/samples", map[string]interface{}{"latitude": 10.0, "longitude": 10.0})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to process sample", decode(t, w)["error"])
}

func TestIngestSample_LostAlertIsReported(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	zoneID := uuid.New()
	f.pipeline.process = func(userID uuid.UUID, in models.SampleInput) (*services.ProcessResult, error) {
		res := &services.ProcessResult{ZoneEvents: []services.ZoneEvent{{ZoneID: zoneID, EventType: models.EventZoneExit}}}
		return res, fmt.Errorf("%w for zone %s: %w", services.ErrAlertNotRaised, zoneID, errors.New("deadlock detected"))
	}

	w := f.do(http.MethodPost, "/api/v1/samples", map[string]interface{}{"latitude": 10.0, "longitude": 10.0})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "failed to raise alert", body["error"])
	data, isMap := body["data"].(map[string]interface{})
	require.True(t, isMap)
	assert.Len(t, data["zone_events"], 1)
}

func TestIngestSample_RateLimited(t *testing.T) {
	lim := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 1})
	f := newFixture(t, RouterConfig{IngestLimiter: lim}, nil)
	body := map[string]interface{}{"latitude": 10.0, "longitude": 10.0}

	w := f.do(http.MethodPost, "/api/v1/samples", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = f.do(http.MethodPost, "/api/v1/samples", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// other routes are not limited
	w = f.do(http.MethodGet, "/api/v1/safe-zones", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResetTracking(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	w := f.do(http.MethodDelete, "/api/v1/tracking", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{f.user}, f.tracker.reset)
}

func TestSafeZoneLifecycle(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)

	w := f.do(http.MethodPost, "/api/v1/safe-zones", map[string]interface{}{
		"name": "Home", "center_latitude": 10.0, "center_longitude": 106.0, "radius_meters": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.store.zones)

	w = f.do(http.MethodPost, "/api/v1/safe-zones", map[string]interface{}{
		"name": "Home", "center_latitude": 10.0, "center_longitude": 106.0, "radius_meters": 100,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "safe", data["zone_type"])
	assert.Equal(t, true, data["alert_on_exit"])
	id := data["id"].(string)

	// renaming keeps membership
	w = f.do(http.MethodPut, "/api/v1/safe-zones/"+id, map[string]interface{}{"name": "House"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.tracker.forgotten)

	// resizing drops it
	w = f.do(http.MethodPut, "/api/v1/safe-zones/"+id, map[string]interface{}{"radius_meters": 250})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.tracker.forgotten, 1)

	w = f.do(http.MethodDelete, "/api/v1/safe-zones/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.store.zones[uuid.MustParse(id)].IsActive)
	assert.Len(t, f.tracker.forgotten, 2)
}

func TestSafeZone_OtherUserNotFound(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	zone := models.SafeZone{UserID: uuid.New(), Name: "Elsewhere", ZoneType: models.ZoneSafe, RadiusMeters: 50, IsActive: true}
	require.NoError(t, f.store.CreateSafeZone(context.Background(), &zone))

	w := f.do(http.MethodGet, "/api/v1/safe-zones/"+zone.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/api/v1/safe-zones/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAlert_StatusReflectsDuplicate(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	f.alerts.result = &alerts.Result{Alert: models.EmergencyAlert{ID: uuid.New()}, NotifyContacts: true}

	w := f.do(http.MethodPost, "/api/v1/alerts", map[string]interface{}{"alert_type": "manual"})
	assert.Equal(t, http.StatusCreated, w.Code)

	f.alerts.result.Duplicate = true
	w = f.do(http.MethodPost, "/api/v1/alerts", map[string]interface{}{"alert_type": "manual"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/alerts/urgent", map[string]interface{}{"alert_type": "sos"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.alerts.urgent)

	w = f.do(http.MethodPost, "/api/v1/alerts", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAlert_ValidationError(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	f.alerts.err = &models.ValidationError{Field: "alert_type", Message: "unknown type"}

	w := f.do(http.MethodPost, "/api/v1/alerts", map[string]interface{}{"alert_type": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid alert_type: unknown type", decode(t, w)["error"])
}

func TestUpdateAlertStatus(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	id := uuid.New().String()

	w := f.do(http.MethodPatch, "/api/v1/alerts/"+id+"/status", map[string]interface{}{"status": "resolved"})
	assert.Equal(t, http.StatusOK, w.Code)

	f.alerts.updateErr = alerts.ErrInvalidTransition
	w = f.do(http.MethodPatch, "/api/v1/alerts/"+id+"/status", map[string]interface{}{"status": "active"})
	assert.Equal(t, http.StatusConflict, w.Code)

	f.alerts.updateErr = models.ErrNotFound
	w = f.do(http.MethodPatch, "/api/v1/alerts/"+id+"/status", map[string]interface{}{"status": "resolved"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAlerts_RejectsUnknownFilter(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	w := f.do(http.MethodGet, "/api/v1/alerts?status=closed", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v1/alerts?status=active", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{}, data["items"])
}

func TestContacts(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)

	w := f.do(http.MethodPost, "/api/v1/contacts", map[string]interface{}{"name": "Lan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/v1/contacts", map[string]interface{}{"name": "Lan", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/v1/contacts", map[string]interface{}{"name": "Lan", "phone": "+84901234567"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["data"].(map[string]interface{})["id"].(string)

	w = f.do(http.MethodPut, "/api/v1/contacts/"+id, map[string]interface{}{"email": "lan@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lan@example.com", f.store.contacts[uuid.MustParse(id)].Email)

	w = f.do(http.MethodDelete, "/api/v1/contacts/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/contacts", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["data"])
}

func TestListLocationEvents_EmptyList(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	w := f.do(http.MethodGet, "/api/v1/location-events", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["data"])
}

func TestLiveFeedUnavailable(t *testing.T) {
	f := newFixture(t, RouterConfig{}, nil)
	w := f.do(http.MethodGet, "/api/v1/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
