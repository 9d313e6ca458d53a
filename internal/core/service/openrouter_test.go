package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carb-estimator/internal/core/ai/provider"
	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *OpenRouterService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.OpenRouter.BaseURL = srv.URL
	cfg.OpenRouter.APIKey = "sk-test"
	cfg.OpenRouter.Model = "test/vision-model"
	cfg.OpenRouter.MaxTokens = 800
	cfg.OpenRouter.Temperature = 0.2
	cfg.OpenRouter.Timeout = 5 * time.Second
	return NewOpenRouterService(cfg)
}

func TestGenerateBuildsMultimodalRequest(t *testing.T) {
	t.Parallel()

	var body []byte
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"test/vision-model","choices":[{"message":{"content":"{\"totalCarbGrams\":49}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	})

	resp, err := svc.Generate(context.Background(), &provider.Request{
		SystemPrompt: "You estimate net carbs.",
		Text:         "Analyze this meal.",
		Images:       []string{"data:image/jpeg;base64,AAAA", "BBBB"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"totalCarbGrams":49}`, resp.Content)
	require.Equal(t, "test/vision-model", resp.Model)
	require.Equal(t, 15, resp.Usage.TotalTokens)

	parsed := gjson.ParseBytes(body)
	require.Equal(t, "test/vision-model", parsed.Get("model").String())
	require.Equal(t, int64(800), parsed.Get("max_tokens").Int())
	require.Equal(t, "system", parsed.Get("messages.0.role").String())
	require.Equal(t, "You estimate net carbs.", parsed.Get("messages.0.content.0.text").String())
	require.Equal(t, "user", parsed.Get("messages.1.role").String())
	require.Equal(t, "Analyze this meal.", parsed.Get("messages.1.content.0.text").String())
	require.Equal(t, "data:image/jpeg;base64,AAAA", parsed.Get("messages.1.content.1.image_url.url").String())
	require.Equal(t, "data:image/jpeg;base64,BBBB", parsed.Get("messages.1.content.2.image_url.url").String())
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "error status with message",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"Rate limit exceeded"}}`,
			wantMsg: "Rate limit exceeded",
		},
		{
			name:    "error status with echoed image",
			status:  http.StatusBadRequest,
			body:    `bad request data:image/png;base64,iVBORw0KGgo=`,
			wantMsg: "[IMAGE_DATA_REMOVED]",
		},
		{
			name:    "error object with ok status",
			status:  http.StatusOK,
			body:    `{"error":{"message":"Provider returned error"}}`,
			wantMsg: "Provider returned error",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantMsg: "no choices",
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>gateway</html>`,
			wantMsg: "invalid OpenRouter response",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := svc.Generate(context.Background(), &provider.Request{Text: "hi"})
			require.Error(t, err)
			require.ErrorIs(t, err, common.ErrAIServiceError)
			require.Contains(t, err.Error(), tt.wantMsg)
			require.NotContains(t, err.Error(), "iVBORw0KGgo")
		})
	}
}

func TestProviderAccessors(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	require.Equal(t, "test/vision-model", svc.GetModel())
	require.Equal(t, 5*time.Second, svc.GetTimeout())
	require.NoError(t, svc.Close())
}
