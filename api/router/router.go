package router

import (
	"github.com/gin-gonic/gin"

	"lexanalyzer/api/handler"
	"lexanalyzer/api/middleware"
	"lexanalyzer/config"
	"lexanalyzer/metrics"
)

func RegisterRoutes(r *gin.Engine, contractH *handler.ContractHandler, m *metrics.Metrics, cfg config.ServerConfig) {
	r.Use(
		middleware.RequestID(),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.Metrics(m),
	)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimit), middleware.RequestSizeLimit(cfg.MaxUploadMB))
	{
		api.GET("/health", contractH.Health)
		api.GET("/models", contractH.Models)
		api.GET("/stats", contractH.Stats)

		analyze := api.Group("/analyze")
		{
			analyze.POST("", contractH.Analyze)
			analyze.POST("/upload", contractH.AnalyzeUpload)
		}

		api.POST("/search", contractH.Search)
		api.POST("/index", contractH.Index)

		contract := api.Group("/contracts")
		{
			contract.GET("/:id/clauses", contractH.GetClauses)
			contract.DELETE("/:id", contractH.DeleteContract)
		}

		analyses := api.Group("/analyses")
		{
			analyses.GET("", contractH.ListAnalyses)
			analyses.GET("/:id", contractH.GetAnalysis)
		}
	}
}
