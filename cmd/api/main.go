package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carb-estimator/internal/api"
	"carb-estimator/internal/api/handlers"
	"carb-estimator/internal/api/handlers/health"
	"carb-estimator/internal/core/ai/cache"
	"carb-estimator/internal/core/ai/queue"
	aiservice "carb-estimator/internal/core/ai/service"
	"carb-estimator/internal/core/analysis"
	"carb-estimator/internal/core/history"
	"carb-estimator/internal/core/service"
	"carb-estimator/internal/core/webpage"
	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 載入 .env 與設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	// 初始化快取
	aiCache, err := cache.New(cfg)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if aiCache != nil {
		defer aiCache.Close()
	}

	// 初始化分析紀錄
	var (
		historyWriter analysis.HistoryWriter
		historyReader handlers.HistoryReader
		checks        = make(map[string]health.Pinger)
	)
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			common.LogFatal("Failed to open history store", zap.Error(err))
		}
		defer store.Close()
		historyWriter = store
		historyReader = store
		checks["history"] = store
	}

	// AI 呼叫鏈：provider → 隊列 → AI 服務
	provider := service.NewOpenRouterService(cfg)
	defer provider.Close()

	queueManager := queue.NewManager(cfg)
	queueManager.Start()
	defer queueManager.Close()

	aiService := aiservice.NewService(cfg, provider, aiCache, queueManager)
	pages := webpage.NewFetcher(cfg.Analysis.FetchTimeout, cfg.Analysis.PageTextLimit)
	analysisService := analysis.NewService(cfg, aiService, pages, historyWriter)

	healthHandler := &health.Handler{
		Version: cfg.App.Version,
		Model:   provider.GetModel(),
		Cache:   aiCache,
		Queue:   queueManager,
		Checks:  checks,
	}

	router := api.SetupRouter(cfg, api.Dependencies{
		Analyzer: analysisService,
		History:  historyReader,
		Health:   healthHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		common.LogInfo("啟動應用",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		common.LogInfo("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		common.LogError("Failed to start server", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		return
	}

	common.LogInfo("Server exited")
}
