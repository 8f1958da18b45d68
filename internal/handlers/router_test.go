package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/franzego/partnernotify/internal/cache"
	"github.com/franzego/partnernotify/internal/metrics"
	"github.com/franzego/partnernotify/internal/models"
	"github.com/franzego/partnernotify/internal/queue"
	"github.com/franzego/partnernotify/internal/selector"
	"github.com/franzego/partnernotify/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const routerSecret = "router-secret"

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(routerSecret))
	require.NoError(t, err)
	return token
}

// TestIntegration_AdminWriteRefreshesSelection drives the full router: the
// public endpoint is served from the redis cache until an admin write drops it.
func TestIntegration_AdminWriteRefreshesSelection(t *testing.T) {
	gin.SetMode(gin.TestMode)

	backend := new(MockStore)
	rdb := setupMockRedis(t)
	active := cache.NewActiveCache(rdb, time.Minute)
	cached := store.NewCachedStore(backend, active, zap.NewNop())

	first := homeNotification("first")
	second := homeNotification("second")
	backend.On("ListActive", mock.Anything).Return([]models.Notification{first}, nil).Once()
	backend.On("ListActive", mock.Anything).Return([]models.Notification{second}, nil).Once()
	off := false
	disabled := first
	disabled.IsActive = false
	backend.On("Update", mock.Anything, "first", models.UpdateNotificationRequest{IsActive: &off}).Return(&disabled, nil).Once()

	reg := prometheus.NewRegistry()
	handler := NewNotificationHandler(cached, selector.New(nil), queue.NopPublisher{}, metrics.New(reg), zap.NewNop())
	health := NewHealthHandler(backend, active, queue.NopPublisher{}, "test")
	router := NewRouter(RouterConfig{
		JWTSecret:   routerSecret,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ServiceName: "partner-notifications",
	}, handler, health)

	pick := func() string {
		w := getActive(router, "?page=home")
		require.Equal(t, http.StatusOK, w.Code)
		var response models.ActiveNotificationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.NotNil(t, response.Notification)
		return response.Notification.ID
	}

	assert.Equal(t, "first", pick())
	assert.Equal(t, "first", pick(), "second read should come from cache")

	// admin routes require a token
	req, _ := http.NewRequest("PATCH", "/api/v1/admin/notifications/first", bytes.NewBufferString(`{"is_active":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("PATCH", "/api/v1/admin/notifications/first", bytes.NewBufferString(`{"is_active":false}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	assert.Equal(t, "second", pick())
	backend.AssertExpectations(t)

	req, _ = http.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `partner_notification_selections_total{result="shown"} 3`)
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := new(MockStore)
	healthy.On("Ping", mock.Anything).Return(nil)
	down := new(MockStore)
	down.On("Ping", mock.Anything).Return(models.ErrUpstream)
	disconnected := new(MockPublisher)
	disconnected.On("IsConnected").Return(false)

	tests := []struct {
		name      string
		store     Pinger
		publisher queue.Publisher
		code      int
		status    string
	}{
		{name: "healthy", store: healthy, publisher: queue.NopPublisher{}, code: http.StatusOK, status: "healthy"},
		{name: "broker down", store: healthy, publisher: disconnected, code: http.StatusOK, status: "degraded"},
		{name: "broker dial failed", store: healthy, publisher: queue.DownPublisher{Err: errors.New("dial tcp: connection refused")}, code: http.StatusOK, status: "degraded"},
		{name: "store down", store: down, publisher: queue.NopPublisher{}, code: http.StatusServiceUnavailable, status: "unhealthy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.store, nil, tc.publisher, "test")
			router := gin.New()
			router.GET("/health", h.HealthCheck)

			req, _ := http.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body["status"])
		})
	}
}
