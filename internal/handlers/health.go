package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/franzego/partnernotify/internal/queue"
	"github.com/gin-gonic/gin"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store     Pinger
	cache     Pinger
	publisher queue.Publisher
	version   string
}

// NewHealthHandler builds the health check. cache may be nil when redis is
// not configured.
func NewHealthHandler(store Pinger, cache Pinger, publisher queue.Publisher, version string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		cache:     cache,
		publisher: publisher,
		version:   version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	// The store is the only hard dependency.
	if err := h.store.Ping(ctx); err == nil {
		checks["store"] = "healthy"
	} else {
		checks["store"] = "unhealthy"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err == nil {
			checks["redis"] = "healthy"
		} else {
			checks["redis"] = "degraded"
		}
	}

	if h.publisher.IsConnected() {
		checks["rabbitmq"] = "healthy"
	} else {
		checks["rabbitmq"] = "degraded"
	}

	// Determine overall status
	overallStatus := "healthy"
	for _, status := range checks {
		if status == "unhealthy" {
			overallStatus = "unhealthy"
			break
		} else if status == "degraded" {
			overallStatus = "degraded"
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
		"version":   h.version,
	})
}
