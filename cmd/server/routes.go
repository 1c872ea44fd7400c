package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keystock.backend/internal/interfaces/http/handlers"
	"keystock.backend/internal/interfaces/http/middleware"
)

const (
	serviceName    = "keystock-backend"
	serviceVersion = "1.0.0"
)

type routeDeps struct {
	keyHandler      *handlers.KeyHandler
	historyHandler  *handlers.HistoryHandler
	settingsHandler *handlers.SettingsHandler
	idempotency     gin.HandlerFunc
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerKeyRoutes(r, d)
	return r
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, "+middleware.IdempotencyHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerKeyRoutes(r *gin.Engine, d routeDeps) {
	idempotency := d.idempotency
	if idempotency == nil {
		idempotency = func(c *gin.Context) { c.Next() }
	}

	keys := r.Group("/keys")
	{
		keys.GET("", d.keyHandler.ListKeys)
		keys.POST("", idempotency, d.keyHandler.CreateKeys)
		keys.GET("/free", d.keyHandler.AcquireFree)
		keys.GET("/free/list", d.keyHandler.ListFree)
		keys.GET("/active/list", d.keyHandler.ListActive)
		keys.GET("/summary", d.keyHandler.Summary)
		keys.PUT("/:key/inuse", d.keyHandler.MarkInUse)
		keys.PUT("/:key/release", d.keyHandler.Release)
		keys.PUT("/:key/invalidate", d.keyHandler.Invalidate)
		keys.DELETE("/:key", d.keyHandler.DeleteKey)
		keys.GET("/:key/history", d.keyHandler.History)
	}

	r.GET("/history", d.historyHandler.GlobalHistory)
	r.GET("/stats", d.historyHandler.Stats)

	settings := r.Group("/telegram")
	{
		settings.GET("/settings", d.settingsHandler.GetSettings)
		settings.PUT("/settings", d.settingsHandler.UpdateSettings)
	}
}
