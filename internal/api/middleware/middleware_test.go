package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestRateLimiterRefill(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(2, time.Second)
	rl.lastTime = now
	rl.now = func() time.Time { return now }

	require.True(t, rl.Allow())
	require.True(t, rl.Allow())
	require.False(t, rl.Allow())

	// 半秒補一個令牌
	now = now.Add(500 * time.Millisecond)
	require.True(t, rl.Allow())
	require.False(t, rl.Allow())

	// 補充不超過容量
	now = now.Add(time.Minute)
	require.True(t, rl.Allow())
	require.True(t, rl.Allow())
	require.False(t, rl.Allow())
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(RateLimit(1, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	require.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/", "").Code)

	w := serve(r, http.MethodGet, "/", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
	require.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
}

func TestDeduplication(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	d := NewDeduplicator(time.Second)
	d.now = func() time.Time { return now }

	var bodies []string
	r := gin.New()
	r.Use(d.Middleware())
	r.POST("/analyze", func(c *gin.Context) {
		raw, err := c.GetRawData()
		require.NoError(t, err)
		bodies = append(bodies, string(raw))
		c.Status(http.StatusNoContent)
	})
	r.GET("/analyze", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	require.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/analyze", `{"a":1}`).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/analyze", `{"a":1}`).Code)
	require.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/analyze", `{"a":2}`).Code)

	// GET 不去重
	require.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/analyze", "").Code)
	require.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/analyze", "").Code)

	now = now.Add(2 * time.Second)
	require.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/analyze", `{"a":1}`).Code)

	// 處理器仍能讀到完整請求體
	require.Equal(t, []string{`{"a":1}`, `{"a":2}`, `{"a":1}`}, bodies)
}

func TestDeduplicatorPrunesOldEntries(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	d := NewDeduplicator(0)
	d.now = func() time.Time { return now }

	require.False(t, d.seen("a"))
	now = now.Add(11 * time.Second)
	require.False(t, d.seen("b"))
	require.NotContains(t, d.requests, "a")
	require.Contains(t, d.requests, "b")
}

func TestBodySizeLimit(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusNoContent)
	})

	require.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/", "small").Code)

	w := serve(r, http.MethodPost, "/", "this body is too large")
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
}

func TestTimeout(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(Timeout(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) {
		_, hasDeadline := c.Request.Context().Deadline()
		require.True(t, hasDeadline)
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodGet, "/slow", "")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.Contains(t, w.Body.String(), "GATEWAY_TIMEOUT")

	require.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/fast", "").Code)
}

func TestRecovery(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic(context.Canceled) })

	w := serve(r, http.MethodGet, "/", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
