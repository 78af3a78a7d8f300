package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner-api/internal/handler"
	internalmiddleware "github.com/noah-isme/course-planner-api/internal/middleware"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/service"
	"github.com/noah-isme/course-planner-api/pkg/config"
	"github.com/noah-isme/course-planner-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-planner-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-planner-api/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics  *service.MetricsService
	tokens   *service.TokenService
	catalog  *handler.CatalogHandler
	planner  *handler.PlannerHandler
	plans    *handler.PlanHandler
	observer *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if deps.metrics != nil {
		r.Use(internalmiddleware.Metrics(deps.metrics))
	}
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", deps.observer.Health)
	r.GET("/ready", deps.observer.Ready)
	if deps.metrics != nil {
		r.GET("/metrics", deps.observer.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/shared/plans/:token", deps.plans.Shared)

	terms := api.Group("/catalog/terms", internalmiddleware.OptionalJWT(deps.tokens))
	terms.GET("", deps.catalog.Terms)
	terms.GET("/:term/courses", deps.catalog.Courses)
	terms.GET("/:term/courses/:code", deps.catalog.Course)

	secured := api.Group("", internalmiddleware.JWT(deps.tokens))
	secured.POST("/catalog/terms/:term/import", internalmiddleware.RequireRoles(models.RoleAdmin), deps.catalog.Import)
	secured.GET("/system/metrics", internalmiddleware.RequireRoles(models.RoleAdmin), deps.observer.Summary)

	sessions := secured.Group("/planner/sessions")
	sessions.POST("", deps.planner.CreateSession)
	sessions.GET("/:id", deps.planner.GetSession)
	sessions.DELETE("/:id", deps.planner.DeleteSession)
	sessions.PUT("/:id/inputs", deps.planner.UpdateInputs)
	sessions.POST("/:id/generate", deps.planner.Generate)
	sessions.GET("/:id/run", deps.planner.Run)
	sessions.POST("/:id/run/cancel", deps.planner.CancelRun)
	sessions.GET("/:id/schedule", deps.planner.Schedule)
	sessions.POST("/:id/schedule/navigate", deps.planner.Navigate)
	sessions.POST("/:id/pins/:crn", deps.planner.TogglePin)
	sessions.GET("/:id/prerequisites", deps.planner.Prerequisites)
	sessions.PUT("/:id/prerequisites/taken/:code", deps.planner.AddTaken)
	sessions.DELETE("/:id/prerequisites/taken/:code", deps.planner.RemoveTaken)
	sessions.PUT("/:id/prerequisites/future/:code", deps.planner.AddFuture)
	sessions.DELETE("/:id/prerequisites/future", deps.planner.ClearFuture)

	plans := secured.Group("/plans")
	plans.POST("", deps.plans.Save)
	plans.GET("", deps.plans.List)
	plans.GET("/:id", deps.plans.Get)
	plans.DELETE("/:id", deps.plans.Delete)
	plans.POST("/:id/share", deps.plans.Share)

	return r
}
