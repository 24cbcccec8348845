package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/metrics"
)

const (
	apiKeyHeader = "X-API-Key"
	userIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(latency.Seconds())

		logger.With(logrus.Fields{"status": status, "latency": latency.String()}).
			Infof("Request: %s %s", method, path)
	}
}

// AuthMiddleware checks the shared API key. An empty key disables the check.
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader(apiKeyHeader) != apiKey {
			fail(c, http.StatusUnauthorized, "invalid api key")
			return
		}
		c.Next()
	}
}

// UserMiddleware reads the authenticated user id set by the upstream gateway.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(userIDHeader)
		if raw == "" {
			fail(c, http.StatusUnauthorized, "missing "+userIDHeader+" header")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid "+userIDHeader+" header")
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(userIDKey).(uuid.UUID)
}

// RateLimitMiddleware limits requests per user with lim. Store errors let the
// request through.
func RateLimitMiddleware(lim *limiter.Limiter, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(userIDHeader)
		if key == "" {
			key = c.ClientIP()
		}
		ctx, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			logger.Warnf("Rate limiter unavailable: %v", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))
		if ctx.Reached {
			retry := int(time.Until(time.Unix(ctx.Reset, 0)).Seconds())
			if retry < 0 {
				retry = 0
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			metrics.SamplesRejected.WithLabelValues("rate_limited").Inc()
			fail(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
