package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/hr-optimizer/internal/api/handlers"
	"github.com/jstittsworth/hr-optimizer/internal/api/middleware"
	"github.com/jstittsworth/hr-optimizer/internal/metrics"
	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
	"github.com/jstittsworth/hr-optimizer/internal/services"
	"github.com/jstittsworth/hr-optimizer/internal/websocket"
	"github.com/jstittsworth/hr-optimizer/pkg/config"
	"github.com/jstittsworth/hr-optimizer/pkg/database"
)

// Deps carries the long-lived services the routes are built on.
type Deps struct {
	DB      *database.DB
	Cache   *services.CacheService
	Store   *services.RunStore
	Runner  *pipeline.Runner
	Hub     *websocket.Hub
	Metrics *metrics.Manager
	Limiter *services.RateLimiter
	Config  *config.Config
	Logger  *logrus.Logger
}

// NewRouter builds the gin engine with middleware and every route mounted.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(deps.Config.CorsOrigins))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Runner)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.Hub != nil {
		router.GET("/ws/runs/:session_id", deps.Hub.HandleWebSocket)
	}

	SetupRoutes(router.Group("/api/v1"), deps)
	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps Deps) {
	runHandler := handlers.NewRunHandler(deps.Runner, deps.Store, deps.Cache, deps.Metrics, deps.Config, deps.Logger)

	create := []gin.HandlerFunc{runHandler.CreateRun}
	if deps.Limiter != nil {
		create = append([]gin.HandlerFunc{middleware.RateLimit(deps.Limiter)}, create...)
	}
	group.POST("/runs", create...)

	group.GET("/runs", runHandler.ListRuns)
	group.GET("/runs/:id", runHandler.GetRun)
	group.GET("/runs/:id/export", runHandler.ExportRun)
}
