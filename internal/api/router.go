package api

import (
	"time"

	"carb-estimator/internal/api/handlers"
	"carb-estimator/internal/api/handlers/health"
	"carb-estimator/internal/api/middleware"
	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies 路由使用的服務；History 為 nil 時不註冊紀錄路由
type Dependencies struct {
	Analyzer handlers.Analyzer
	History  handlers.HistoryReader
	Health   *health.Handler
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		c.JSON(common.ErrNotFound.Status, common.ErrorResponse{
			Code:    common.ErrNotFound.Code,
			Message: common.ErrNotFound.Message,
		})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(common.ErrMethodNotAllowed.Status, common.ErrorResponse{
			Code:    common.ErrMethodNotAllowed.Code,
			Message: common.ErrMethodNotAllowed.Message,
		})
	})

	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins(cfg.Server.AllowOrigins),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAll(cfg.Server.AllowOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	healthHandler := deps.Health
	if healthHandler == nil {
		healthHandler = &health.Handler{Version: cfg.App.Version}
	}
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	api.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	dedup := middleware.NewDeduplicator(cfg.DedupWindow).Middleware()
	analysisHandler := handlers.NewAnalysisHandler(deps.Analyzer, cfg.App.Debug)
	{
		analyze := api.Group("/analyze", dedup)
		analyze.POST("/meal", analysisHandler.AnalyzeMeal)
		analyze.POST("/recipe", analysisHandler.AnalyzeRecipe)

		api.POST("/decode/:profile", analysisHandler.Decode)
	}

	if deps.History != nil {
		historyHandler := handlers.NewHistoryHandler(deps.History, cfg.App.Debug)
		api.GET("/history", historyHandler.List)
		api.GET("/history/:id", historyHandler.Get)
	}

	common.LogInfo("Router setup completed",
		zap.Bool("history_enabled", deps.History != nil),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
		zap.Duration("dedup_window", cfg.DedupWindow),
	)

	return router
}

func allowOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// cors 不允許萬用來源搭配 credentials
func allowsAll(origins []string) bool {
	for _, o := range allowOrigins(origins) {
		if o == "*" {
			return true
		}
	}
	return false
}
