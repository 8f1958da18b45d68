package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/franzego/partnernotify/internal/metrics"
	"github.com/franzego/partnernotify/internal/models"
	"github.com/franzego/partnernotify/internal/selector"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock notification store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListActive(ctx context.Context) ([]models.Notification, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Notification)
	return list, args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]models.Notification, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Notification)
	return list, args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	n, _ := args.Get(0).(*models.Notification)
	return n, args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error) {
	args := m.Called(ctx, req)
	n, _ := args.Get(0).(*models.Notification)
	return n, args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id string, req models.UpdateNotificationRequest) (*models.Notification, error) {
	args := m.Called(ctx, id, req)
	n, _ := args.Get(0).(*models.Notification)
	return n, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Mock change publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishChange(ctx context.Context, event models.ChangeEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPublisher) IsConnected() bool {
	return m.Called().Bool(0)
}

func homeNotification(id string) models.Notification {
	return models.Notification{
		ID:          id,
		Title:       "Partner " + id,
		Message:     "Check this out",
		IsActive:    true,
		TargetScope: models.ScopePages,
		ShowOnPages: map[string]bool{"home": true},
	}
}

func newTestHandler(st *MockStore, pub *MockPublisher) (*NotificationHandler, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewNotificationHandler(st, selector.New(selector.NewLockedRand(1, 2)), pub, m, zap.NewNop()), m
}

func getActive(router *gin.Engine, query string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/api/v1/notifications/active"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetActive_ReturnsEligibleNotification(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	mockStore.On("ListActive", mock.Anything).Return([]models.Notification{
		{ID: "news-only", IsActive: true, TargetScope: models.ScopePages, ShowOnPages: map[string]bool{"news": true}},
		homeNotification("n1"),
	}, nil)

	handler, m := newTestHandler(mockStore, new(MockPublisher))
	router := gin.New()
	router.GET("/api/v1/notifications/active", handler.GetActive)

	w := getActive(router, "?page=home")

	assert.Equal(t, http.StatusOK, w.Code)
	var response models.ActiveNotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	require.NotNil(t, response.Notification)
	assert.Equal(t, "n1", response.Notification.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Selections.WithLabelValues(metrics.ResultShown)))

	mockStore.AssertExpectations(t)
}

func TestGetActive_NoEligibleReturnsNull(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	mockStore.On("ListActive", mock.Anything).Return([]models.Notification{homeNotification("n1")}, nil)

	handler, _ := newTestHandler(mockStore, new(MockPublisher))
	router := gin.New()
	router.GET("/api/v1/notifications/active", handler.GetActive)

	w := getActive(router, "?page=news")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"notification":null}`, w.Body.String())
}

func TestGetActive_MissingPage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	handler, _ := newTestHandler(mockStore, new(MockPublisher))
	router := gin.New()
	router.GET("/api/v1/notifications/active", handler.GetActive)

	w := getActive(router, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockStore.AssertNotCalled(t, "ListActive", mock.Anything)
}

func TestGetActive_UpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	mockStore.On("ListActive", mock.Anything).Return(nil, models.ErrUpstream)

	handler, m := newTestHandler(mockStore, new(MockPublisher))
	router := gin.New()
	router.GET("/api/v1/notifications/active", handler.GetActive)

	w := getActive(router, "?page=home")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
	assert.NotContains(t, body, "notification")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Selections.WithLabelValues(metrics.ResultError)))
}

func TestCreate_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	mockPublisher := new(MockPublisher)
	created := homeNotification("new-id")
	mockStore.On("Create", mock.Anything, mock.MatchedBy(func(req models.CreateNotificationRequest) bool {
		return req.Title == "Partner new-id" && req.TargetScope == models.ScopePages
	})).Return(&created, nil)
	mockPublisher.On("PublishChange", mock.Anything, mock.MatchedBy(func(e models.ChangeEvent) bool {
		return e.NotificationID == "new-id" && e.Action == models.ActionCreated && e.EventID != ""
	})).Return(nil)

	handler, _ := newTestHandler(mockStore, mockPublisher)
	router := gin.New()
	router.POST("/notifications", handler.Create)

	body, _ := json.Marshal(models.CreateNotificationRequest{
		Title:       "Partner new-id",
		Message:     "Check this out",
		IsActive:    true,
		TargetScope: models.ScopePages,
		ShowOnPages: map[string]bool{"home": true},
	})
	req, _ := http.NewRequest("POST", "/notifications", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "Notification created", response.Message)

	mockStore.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestCreate_InvalidScope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	handler, _ := newTestHandler(mockStore, new(MockPublisher))
	router := gin.New()
	router.POST("/notifications", handler.Create)

	req, _ := http.NewRequest("POST", "/notifications",
		bytes.NewBufferString(`{"title":"t","message":"m","target_scope":"everywhere"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdate_EmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler, _ := newTestHandler(new(MockStore), new(MockPublisher))
	router := gin.New()
	router.PATCH("/notifications/:id", handler.Update)

	req, _ := http.NewRequest("PATCH", "/notifications/n1", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdate_PublishFailureStillSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	mockPublisher := new(MockPublisher)
	updated := homeNotification("n1")
	updated.IsActive = false
	mockStore.On("Update", mock.Anything, "n1", mock.Anything).Return(&updated, nil)
	mockPublisher.On("PublishChange", mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	handler, _ := newTestHandler(mockStore, mockPublisher)
	router := gin.New()
	router.PATCH("/notifications/:id", handler.Update)

	req, _ := http.NewRequest("PATCH", "/notifications/n1", bytes.NewBufferString(`{"is_active":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockStore.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestDelete_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	mockPublisher := new(MockPublisher)
	mockStore.On("Delete", mock.Anything, "missing").Return(models.ErrNotFound)

	handler, _ := newTestHandler(mockStore, mockPublisher)
	router := gin.New()
	router.DELETE("/notifications/:id", handler.Delete)

	req, _ := http.NewRequest("DELETE", "/notifications/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var response models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Success)
	mockPublisher.AssertNotCalled(t, "PublishChange", mock.Anything, mock.Anything)
}

func TestGet_Found(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockStore := new(MockStore)
	n := homeNotification("n1")
	mockStore.On("Get", mock.Anything, "n1").Return(&n, nil)

	handler, _ := newTestHandler(mockStore, new(MockPublisher))
	router := gin.New()
	router.GET("/notifications/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/notifications/n1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"n1"`)
}

func setupMockRedis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}
