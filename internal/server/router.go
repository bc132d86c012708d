// Package server assembles the gin router, grounded on the teacher's
// internal/server/router.go (gin.Default() + cors.New() + grouped route
// registration), generalized from session-auth-gated user/course routes to
// this module's tenant-header-gated RAG routes (spec.md §6).
package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/ragcore/internal/handlers"
	"github.com/yungbote/ragcore/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins        []string
	TenantMiddleware    *middleware.TenantMiddleware
	DocumentHandler     *handlers.DocumentHandler
	SearchHandler       *handlers.SearchHandler
	DeepResearchHandler *handlers.DeepResearchHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("ragcore"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-Id", "X-Space-Id"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	protected := router.Group("/")
	protected.Use(cfg.TenantMiddleware.RequireTenant())
	{
		protected.POST("/upload", cfg.DocumentHandler.Upload)
		protected.POST("/search", cfg.SearchHandler.Search)
		protected.POST("/image-search", cfg.SearchHandler.ImageSearch)
		protected.POST("/deep-research/start", cfg.DeepResearchHandler.Start)
		protected.POST("/deep-research/ask", cfg.DeepResearchHandler.Ask)

		admin := protected.Group("/admin")
		{
			admin.GET("/documents", cfg.DocumentHandler.ListDocuments)
			admin.DELETE("/documents/:id", cfg.DocumentHandler.DeleteDocument)
			admin.POST("/reindex", cfg.DocumentHandler.Reindex)
		}
	}

	return router
}
