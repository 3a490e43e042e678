package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meal-recommender/internal/api/handlers/health"
	recommendHandler "meal-recommender/internal/api/handlers/recommend"
	searchHandler "meal-recommender/internal/api/handlers/search"
	"meal-recommender/internal/api/middleware"
	"meal-recommender/internal/core/image"
	"meal-recommender/internal/core/recommend"
	"meal-recommender/internal/core/search"
	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 未設定 server.request_timeout 時的預設超時
	defaultRequestTimeout = 120 * time.Second
	// 請求體大小限制 (1MB)
	maxBodySize = 1 << 20
)

// Dependencies 路由所需的已初始化元件
type Dependencies struct {
	Orchestrator *recommend.Orchestrator
	Registry     *recommend.Registry
	Images       *image.Sidecar
	Search       *search.Service
	Checks       map[string]health.Pinger
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if deps.Orchestrator == nil || deps.Registry == nil {
		return nil, errors.New("orchestrator and session registry are required")
	}

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	router.Use(requestTimeout(timeout))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg.App.Version, deps.Orchestrator.Cache(), deps.Images, deps.Checks)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	h := recommendHandler.NewHandler(deps.Orchestrator, deps.Registry, cfg.App.Debug)

	api := router.Group("/api/v1")
	{
		api.POST("/recommendations", h.HandleRecommendations)
		api.GET("/recipes/:recipe_id", h.HandleRecipe)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.HandleCreateSession)
			sessions.GET("/:id", h.HandleSessionSnapshot)
			sessions.POST("/:id/recommendations", h.HandleSessionRecommendations)
			sessions.GET("/:id/images", h.HandleSessionImages)
			sessions.GET("/:id/recipes/:recipe_id", h.HandleSessionRecipe)
		}

		if deps.Search != nil {
			sh := searchHandler.NewHandler(deps.Search, cfg.App.Debug)
			api.GET("/search", sh.HandleSearch)
			api.GET("/search/title", sh.HandleByTitle)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("images_enabled", deps.Images != nil),
		zap.Bool("search_enabled", deps.Search != nil),
		zap.Int("health_checks", len(deps.Checks)),
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}

// requestTimeout 設置請求超時
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    "REQUEST_TIMEOUT",
				Message: "Request timeout",
				Details: timeout.String(),
			})
		}
	}
}
