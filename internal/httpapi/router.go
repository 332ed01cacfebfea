package httpapi

import (
	"github.com/gin-gonic/gin"

	"affidamento/internal/logger"
)

// NewRouter wires the quote, supplier and award endpoints.
func NewRouter(h *Handler, maxUploadBytes int64, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.MaxMultipartMemory = maxUploadBytes

	router.GET("/healthcheck", h.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/preventivi/upload", h.UploadQuote)
		api.GET("/preventivi/:id", h.GetQuote)
		api.POST("/preventivi/:id/parse", h.ParseQuote)
		api.POST("/preventivi/:id/resolve", h.ResolveQuote)
		api.POST("/preventivi/:id/cancel", h.CancelQuote)

		api.GET("/fornitori", h.ListSuppliers)
		api.PATCH("/fornitori/:id", h.PatchSupplier)

		api.POST("/affidamenti/:id/generate", h.GenerateAward)
	}
	return router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}
