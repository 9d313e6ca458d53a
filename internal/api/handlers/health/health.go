package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"carb-estimator/internal/core/ai/queue"
	"carb-estimator/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Model     string                 `json:"model,omitempty"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
}

// CacheStats 快取統計來源
type CacheStats interface {
	Stats() map[string]interface{}
}

// QueueStatus 隊列狀態來源
type QueueStatus interface {
	GetQueueStatus() *queue.Status
}

// Pinger 就緒檢查依賴
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler 健康檢查處理器
type Handler struct {
	Version string
	Model   string
	Cache   CacheStats
	Queue   QueueStatus
	// 就緒檢查依賴，名稱 → 檢查
	Checks map[string]Pinger
}

// HealthCheck GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.Version,
		Model:     h.Model,
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
	if h.Queue != nil {
		response.Queue = h.Queue.GetQueueStatus()
	}
	if h.Cache != nil {
		response.Cache = h.Cache.Stats()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck GET /ready，任一依賴失敗回 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range h.Checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		common.LogWarn("Readiness check failed", zap.Any("failed", failed))
		c.JSON(common.ErrServiceUnavailable.Status, gin.H{
			"status": "not_ready",
			"code":   common.ErrServiceUnavailable.Code,
			"failed": failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck GET /live
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
