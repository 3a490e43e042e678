package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"meal-recommender/internal/core/cache"
	"meal-recommender/internal/core/image"
	"meal-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger 可檢查連線的依賴
type Pinger func(ctx context.Context) error

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
	Images    *image.Status          `json:"images,omitempty"`
}

// Handler 健康檢查處理器
type Handler struct {
	version string
	cache   *cache.CandidateCache
	images  *image.Sidecar
	checks  map[string]Pinger
}

// NewHandler 創建健康檢查處理器；cache、images 可為 nil
func NewHandler(version string, candidates *cache.CandidateCache, images *image.Sidecar, checks map[string]Pinger) *Handler {
	return &Handler{
		version: version,
		cache:   candidates,
		images:  images,
		checks:  checks,
	}
}

// HealthCheck 健康檢查
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.cache != nil {
		response.Cache = h.cache.GetStats()
	}
	if h.images != nil {
		response.Images = h.images.GetStatus()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：所有依賴都能連線
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			ready = false
			results[name] = err.Error()
			common.LogWarn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": results,
	})
}

// LivenessCheck 存活檢查
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
