// Package apirouter exposes the admin HTTP API: webhook CRUD, delivery
// history, test sends and event dispatch.
package apirouter

import (
	"net/http"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/registry"
	"github.com/ferriqa/ferriqa/internal/webhook"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	GinMode string
}

func NewRouter(store registry.Store, service *webhook.Service, logger *logging.Logger, cfg RouterConfig) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLoggerMiddleware(logger))
	router.Use(ErrorHandlerMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	handlers := NewWebhookHandlers(store, service, logger)
	api := router.Group("/api")
	{
		api.POST("/webhooks", handlers.Create)
		api.GET("/webhooks", handlers.List)
		api.GET("/webhooks/:id", handlers.Retrieve)
		api.PATCH("/webhooks/:id", handlers.Update)
		api.DELETE("/webhooks/:id", handlers.Delete)
		api.GET("/webhooks/:id/deliveries", handlers.ListDeliveries)
		api.POST("/webhooks/:id/test", handlers.Test)
		api.POST("/events", handlers.Dispatch)
		api.GET("/events", handlers.Events)
		api.GET("/stats", handlers.Stats)
	}
	return router
}

func requestLoggerMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Ctx(c.Request.Context()).Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
