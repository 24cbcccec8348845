package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"safezone-alert-service/internal/logging"
)

type RouterConfig struct {
	BasePath string
	APIKey   string
	// IngestLimiter throttles POST /samples per user; nil disables it.
	IngestLimiter *limiter.Limiter
}

func NewRouter(h *Handler, cfg RouterConfig, logger *logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	api := r.Group(basePath, AuthMiddleware(cfg.APIKey), UserMiddleware())
	{
		// Ingestion
		ingest := []gin.HandlerFunc{h.IngestSample}
		if cfg.IngestLimiter != nil {
			ingest = append([]gin.HandlerFunc{RateLimitMiddleware(cfg.IngestLimiter, logger)}, ingest...)
		}
		api.POST("/samples", ingest...)
		api.DELETE("/tracking", h.ResetTracking)

		// Safe zones
		api.GET("/safe-zones", h.ListSafeZones)
		api.POST("/safe-zones", h.CreateSafeZone)
		api.GET("/safe-zones/:id", h.GetSafeZone)
		api.PUT("/safe-zones/:id", h.UpdateSafeZone)
		api.DELETE("/safe-zones/:id", h.DeleteSafeZone)

		// Alerts
		api.GET("/alerts", h.ListAlerts)
		api.POST("/alerts", h.CreateAlert)
		api.POST("/alerts/urgent", h.CreateUrgentAlert)
		api.GET("/alerts/:id", h.GetAlert)
		api.PATCH("/alerts/:id/status", h.UpdateAlertStatus)

		// Emergency contacts
		api.GET("/contacts", h.ListContacts)
		api.POST("/contacts", h.CreateContact)
		api.PUT("/contacts/:id", h.UpdateContact)
		api.DELETE("/contacts/:id", h.DeleteContact)

		// History
		api.GET("/notifications", h.ListNotifications)
		api.GET("/location-events", h.ListLocationEvents)

		api.GET("/ws", h.LiveFeed)
	}
	return r
}
