package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chatkb/chatkb/internal/middleware"
)

type RouterDeps struct {
	Sources         *SourceHandler
	Search          *SearchHandler
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limited := api.Group("")
	if deps.RateLimitWindow > 0 {
		limited.Use(middleware.RateLimit(deps.RateLimitWindow))
	}
	limited.POST("/sources/documents", deps.Sources.CreateDocument)
	limited.POST("/sources/websites", deps.Sources.CreateWebsite)
	limited.POST("/sources/:id/crawl", deps.Sources.Crawl)
	limited.POST("/sources/:id/refresh", deps.Sources.Refresh)

	api.GET("/sources", deps.Sources.List)
	api.GET("/sources/:id", deps.Sources.Get)
	api.DELETE("/sources/:id", deps.Sources.Delete)

	api.POST("/search", deps.Search.Search)
}
