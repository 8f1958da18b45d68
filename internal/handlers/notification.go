package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/franzego/partnernotify/internal/metrics"
	"github.com/franzego/partnernotify/internal/middleware"
	"github.com/franzego/partnernotify/internal/models"
	"github.com/franzego/partnernotify/internal/queue"
	"github.com/franzego/partnernotify/internal/selector"
	"github.com/franzego/partnernotify/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

type NotificationHandler struct {
	store     store.NotificationStore
	selector  *selector.Selector
	publisher queue.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewNotificationHandler(
	st store.NotificationStore,
	sel *selector.Selector,
	publisher queue.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		store:     st,
		selector:  sel,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// GetActive picks the notification to show on the page named by ?page=.
func (n *NotificationHandler) GetActive(c *gin.Context) {
	pageID := c.Query("page")
	if pageID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   "page query parameter is required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	candidates, err := n.store.ListActive(ctx)
	if err != nil {
		n.metrics.Selections.WithLabelValues(metrics.ResultError).Inc()
		n.log.Error("failed to fetch active notifications",
			zap.String("page", pageID),
			zap.String("correlation_id", middleware.GetCorrelationID(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   "failed to fetch active notifications",
		})
		return
	}

	picked := n.selector.Select(pageID, candidates)
	if picked == nil {
		n.metrics.Selections.WithLabelValues(metrics.ResultNone).Inc()
	} else {
		n.metrics.Selections.WithLabelValues(metrics.ResultShown).Inc()
	}
	c.JSON(http.StatusOK, models.ActiveNotificationResponse{
		Success:      true,
		Notification: picked,
	})
}

func (n *NotificationHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	list, err := n.store.List(ctx)
	if err != nil {
		n.writeError(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    list,
		Message: "Notifications retrieved",
	})
}

func (n *NotificationHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	found, err := n.store.Get(ctx, c.Param("id"))
	if err != nil {
		n.writeError(c, err, "Failed to fetch notification")
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    found,
		Message: "Notification retrieved",
	})
}

func (n *NotificationHandler) Create(c *gin.Context) {
	var req models.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	created, err := n.store.Create(ctx, req)
	if err != nil {
		n.metrics.AdminWrites.WithLabelValues(string(models.ActionCreated), "error").Inc()
		n.writeError(c, err, "Failed to create notification")
		return
	}
	n.metrics.AdminWrites.WithLabelValues(string(models.ActionCreated), "ok").Inc()
	n.announce(c, created.ID, models.ActionCreated)

	c.JSON(http.StatusCreated, models.APIResponse{
		Success: true,
		Data:    created,
		Message: "Notification created",
	})
}

func (n *NotificationHandler) Update(c *gin.Context) {
	var req models.UpdateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}
	if req.Empty() {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "no fields to update",
			Message: "Invalid Request Body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	id := c.Param("id")
	updated, err := n.store.Update(ctx, id, req)
	if err != nil {
		n.metrics.AdminWrites.WithLabelValues(string(models.ActionUpdated), "error").Inc()
		n.writeError(c, err, "Failed to update notification")
		return
	}
	n.metrics.AdminWrites.WithLabelValues(string(models.ActionUpdated), "ok").Inc()
	n.announce(c, id, models.ActionUpdated)

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    updated,
		Message: "Notification updated",
	})
}

func (n *NotificationHandler) Delete(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	id := c.Param("id")
	if err := n.store.Delete(ctx, id); err != nil {
		n.metrics.AdminWrites.WithLabelValues(string(models.ActionDeleted), "error").Inc()
		n.writeError(c, err, "Failed to delete notification")
		return
	}
	n.metrics.AdminWrites.WithLabelValues(string(models.ActionDeleted), "ok").Inc()
	n.announce(c, id, models.ActionDeleted)

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Notification deleted",
	})
}

// announce publishes a change event. The write already happened, so a
// publish failure is only logged.
func (n *NotificationHandler) announce(c *gin.Context, id string, action models.ChangeAction) {
	event := models.ChangeEvent{
		EventID:        uuid.New().String(),
		NotificationID: id,
		Action:         action,
		OccurredAt:     time.Now().UTC(),
		CorrelationID:  middleware.GetCorrelationID(c),
	}
	if err := n.publisher.PublishChange(c.Request.Context(), event); err != nil {
		n.log.Warn("failed to publish change event",
			zap.String("notification_id", id),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func (n *NotificationHandler) writeError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		n.log.Error(message,
			zap.String("correlation_id", middleware.GetCorrelationID(c)),
			zap.Error(err),
		)
	}
	c.JSON(status, models.APIResponse{
		Success: false,
		Error:   err.Error(),
		Message: message,
	})
}
