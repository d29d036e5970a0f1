package main

import (
	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/middleware"
)

// routerOptions carries the optional middleware settings
type routerOptions struct {
	JWTSecret   string
	RateLimiter *middleware.RateLimiter
}

func setupRouter(api *API, opts routerOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(api.logger))

	// Open endpoints
	router.GET("/health", api.healthCheck)
	router.GET("/", api.getRoot)
	router.POST("/", api.postRoot)

	protected := router.Group("/")
	if opts.JWTSecret != "" {
		protected.Use(middleware.JWTAuth(opts.JWTSecret))
	}
	if opts.RateLimiter != nil {
		protected.Use(middleware.RateLimit(opts.RateLimiter))
	}
	{
		// JSON body variant
		protected.POST("/get_choices", api.postChoices)
		protected.POST("/download", api.postDownload)

		// Query string variant
		protected.GET("/get_choices", api.getChoices)
		protected.GET("/download", api.getDownload)

		if api.history != nil {
			protected.GET("/history", api.listHistory)
		}
	}

	return router
}
