package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/shelfsync/shelfsync-backend/internal/handlers"
)

type RouterConfig struct {
	WebhookHandler  *handlers.WebhookHandler
	StoreHandler    *handlers.StoreHandler
	DocumentHandler *handlers.DocumentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:80", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/documents", cfg.WebhookHandler.IncomingDocument)
		webhooks.POST("/messages", cfg.WebhookHandler.IncomingMessage)
	}

	api := router.Group("/api")
	{
		api.POST("/stores", cfg.StoreHandler.Create)
		api.POST("/stores/:id/catalog-sync", cfg.StoreHandler.SyncCatalog)
		api.GET("/documents/:id/status", cfg.DocumentHandler.Status)
		api.GET("/documents/:id/artefacts", cfg.DocumentHandler.Artefacts)
	}

	return router
}
