package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-recommender/internal/api"
	"meal-recommender/internal/api/handlers/health"
	"meal-recommender/internal/core/cache"
	"meal-recommender/internal/core/image"
	"meal-recommender/internal/core/nutrition"
	"meal-recommender/internal/core/recommend"
	"meal-recommender/internal/core/search"
	"meal-recommender/internal/core/store"
	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/infrastructure/database"
	"meal-recommender/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("provider", cfg.Provider.BaseURL),
		zap.Bool("provider_key_set", cfg.Provider.APIKey != ""),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("image_enabled", cfg.Image.Enabled),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()

	// 食譜庫
	db, err := database.Open(&cfg.Store)
	if err != nil {
		common.LogFatal("Failed to open recipe store", zap.Error(err))
	}
	defer database.Close(db)

	recipeStore := store.New(db)
	if cfg.Store.AutoMigrate {
		if err := recipeStore.Migrate(); err != nil {
			common.LogFatal("Failed to migrate recipe store", zap.Error(err))
		}
	}

	checks := map[string]health.Pinger{
		"store": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}

	// 圖片快取（Redis 關閉時為 nil，查詢一律 miss）
	rdb, err := database.NewRedisClient(startCtx, &cfg.Redis)
	if err != nil {
		common.LogFatal("Failed to connect to redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	imageCache := cache.NewImageCache(rdb, cfg.Redis.ImageTTL)

	// 圖片旁路
	var resolver image.Resolver
	if cfg.Image.Enabled && cfg.Image.APIKey != "" {
		resolver = image.NewClient(&cfg.Image, imageCache)
	} else {
		common.LogWarn("Image lookup disabled, serving placeholders")
	}
	sidecar := image.NewSidecar(resolver, &cfg.Image)
	defer sidecar.Close()

	// 推薦流程
	provider := nutrition.NewClient(&cfg.Provider)
	defer provider.Close()

	candidates := cache.NewCandidateCache()
	defer candidates.Close()

	orch := recommend.NewOrchestrator(
		provider,
		recipeStore,
		candidates,
		sidecar,
		recommend.OptionsFromConfig(cfg),
	)
	registry := recommend.NewRegistry(orch, cfg.Recommend.SessionTTL)
	defer registry.Close()

	searchSvc := search.NewService(provider, recipeStore, candidates, orch, search.OptionsFromConfig(cfg))

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Orchestrator: orch,
		Registry:     registry,
		Images:       sidecar,
		Search:       searchSvc,
		Checks:       checks,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		return
	}

	common.LogInfo("Server exited")
}
