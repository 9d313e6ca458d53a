package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carb-estimator/internal/api/handlers/health"
	"carb-estimator/internal/core/ai/cache"
	"carb-estimator/internal/core/ai/queue"
	aiservice "carb-estimator/internal/core/ai/service"
	"carb-estimator/internal/core/analysis"
	"carb-estimator/internal/infrastructure/config"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (stubGenerator) ProcessRequest(ctx context.Context, req *aiservice.Request) (*aiservice.Response, error) {
	return &aiservice.Response{Content: `{"totalCarbGrams":30,"confidence":7,"summary":"Sandwich"}`, Model: "stub"}, nil
}

func (stubGenerator) Model() string { return "stub" }

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("database is locked") }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.App.Debug = true
	cfg.Server.MaxBodyBytes = 1 << 20
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Cache.MaxSize = 10
	cfg.Cache.TTL = time.Minute
	cfg.Queue.Workers = 1
	cfg.Queue.MaxSize = 4
	cfg.Analysis.MaxImages = 4
	cfg.Analysis.MaxResponseBytes = 4096
	cfg.DedupWindow = time.Minute
	return cfg
}

func newTestRouter(t *testing.T, checks map[string]health.Pinger) http.Handler {
	t.Helper()
	cfg := testConfig()

	memCache := cache.NewManager(cfg)
	t.Cleanup(func() { _ = memCache.Close() })
	q := queue.NewManager(cfg)

	return SetupRouter(cfg, Dependencies{
		Analyzer: analysis.NewService(cfg, stubGenerator{}, nil, nil),
		Health: &health.Handler{
			Version: cfg.App.Version,
			Model:   "stub",
			Cache:   memCache,
			Queue:   q,
			Checks:  checks,
		},
	})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body health.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "test", body.Version)
	require.NotNil(t, body.Queue)
	require.Equal(t, 1, body.Queue.Workers)
	require.Equal(t, 4, body.Queue.MaxQueueSize)
	require.Contains(t, body.Cache, "hits")

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/live", "").Code)
}

func TestReadinessFailure(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, map[string]health.Pinger{"history": failingPinger{}})

	w := do(r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "database is locked")
}

func TestAnalysisRoutes(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, nil)

	body := `{"images":["data:image/jpeg;base64,AAAA"]}`
	w := do(r, http.MethodPost, "/api/v1/analyze/meal", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"kind":"result"`)
	require.Contains(t, w.Body.String(), `"totalCarbGrams":30`)

	// 相同請求體在去重時間窗內被拒絕
	w = do(r, http.MethodPost, "/api/v1/analyze/meal", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(r, http.MethodPost, "/api/v1/decode/meal", `{"text":"not json"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), `"code":"ANALYSIS_FAILED"`)

	// 未啟用紀錄時不註冊紀錄路由
	w = do(r, http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)

	w = do(r, http.MethodGet, "/api/v1/analyze/meal", "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Contains(t, w.Body.String(), `"code":"METHOD_NOT_ALLOWED"`)
}

func TestCORSOrigins(t *testing.T) {
	t.Parallel()
	require.Equal(t, []string{"*"}, allowOrigins(nil))
	require.True(t, allowsAll(nil))
	require.False(t, allowsAll([]string{"https://app.example.com"}))
}
