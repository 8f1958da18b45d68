package handlers

import (
	"net/http"

	"github.com/franzego/partnernotify/internal/middleware"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	JWTSecret   string
	RateRPS     float64
	RateBurst   int
	Metrics     http.Handler
	ServiceName string
}

func NewRouter(cfg RouterConfig, notifications *NotificationHandler, health *HealthHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CorrelationID(), middleware.RequestLogger(notifications.log))

	r.GET("/health", health.HealthCheck)
	r.GET("/Alive", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "Alive",
			"service": cfg.ServiceName,
		})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateRPS, cfg.RateBurst))
	{
		api.GET("/notifications/active", notifications.GetActive)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		admin.GET("/notifications", notifications.List)
		admin.POST("/notifications", notifications.Create)
		admin.GET("/notifications/:id", notifications.Get)
		admin.PATCH("/notifications/:id", notifications.Update)
		admin.DELETE("/notifications/:id", notifications.Delete)
	}

	return r
}
