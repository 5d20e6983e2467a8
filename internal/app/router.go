package app

import (
	"exam_paper_backend/docs"
	"exam_paper_backend/internal/config"
	"exam_paper_backend/internal/middleware"
	"exam_paper_backend/internal/model"
	"exam_paper_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		papers := authGroup.Group("/papers")
		{
			papers.GET("", c.paper.List)
			papers.GET("/:id", c.paper.Get)
			papers.GET("/:id/versions", c.version.History)
			papers.GET("/:id/versions/compare", c.version.Compare)
			papers.GET("/:id/versions/:vid", c.version.Get)
			papers.GET("/:id/versions/:vid/verify", c.version.Verify)
			papers.GET("/:id/versions/:vid/export", c.version.Export)

			authors := papers.Group("")
			authors.Use(middleware.RoleMiddleware(model.Author))
			{
				authors.POST("", c.paper.Create)
				authors.POST("/:id/submit", c.paper.Submit)
				authors.POST("/:id/publish", c.paper.Publish)
				authors.POST("/:id/versions", c.version.Create)
				authors.POST("/:id/versions/:vid/restore", c.version.Restore)
			}

			approvers := papers.Group("")
			approvers.Use(middleware.RoleMiddleware(model.Approver))
			{
				approvers.POST("/:id/approve", c.paper.Approve)
				approvers.POST("/:id/reject", c.paper.Reject)
				approvers.POST("/:id/delegate", c.paper.Delegate)
				approvers.POST("/:id/extend-deadline", c.paper.ExtendDeadline)
			}
		}

		securityLogs := authGroup.Group("/security-logs")
		securityLogs.Use(middleware.RoleMiddleware(model.Admin))
		{
			securityLogs.GET("", c.securityLog.List)
			securityLogs.GET("/:id", c.securityLog.Get)
			securityLogs.POST("/:id/investigate", c.securityLog.Investigate)
			securityLogs.POST("/:id/resolve", c.securityLog.Resolve)
		}
	}

	if cfg.Storage.Type == "local" {
		router.Static("/exports", cfg.Storage.LocalPath)
	}
}
