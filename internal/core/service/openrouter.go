package service

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"carb-estimator/internal/core/ai/provider"
	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// OpenRouterService OpenRouter chat completions 客戶端
type OpenRouterService struct {
	client      *resty.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

var _ provider.Provider = (*OpenRouterService)(nil)

// chatRequest chat completions 請求體
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []common.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature float64              `json:"temperature"`
}

// NewOpenRouterService 創建 OpenRouter 服務
func NewOpenRouterService(cfg *config.Config) *OpenRouterService {
	client := resty.New().
		SetBaseURL(cfg.OpenRouter.BaseURL).
		SetTimeout(cfg.OpenRouter.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.OpenRouter.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetHeader("HTTP-Referer", "https://carb-estimator.app").
		SetHeader("X-Title", "Carb Estimator")

	return &OpenRouterService{
		client:      client,
		model:       cfg.OpenRouter.Model,
		maxTokens:   cfg.OpenRouter.MaxTokens,
		temperature: cfg.OpenRouter.Temperature,
		timeout:     cfg.OpenRouter.Timeout,
	}
}

// Generate 送出一次多模態請求並回傳模型文字
func (s *OpenRouterService) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := s.buildRequest(req)

	common.LogInfo("Sending request to OpenRouter",
		zap.String("model", body.Model),
		zap.Int("images", len(req.Images)),
		zap.Int("text_length", len(req.Text)),
	)

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		common.LogAICall(s.model, time.Since(start), err)
		return nil, common.ErrAIServiceError.Wrap(fmt.Errorf("failed to send request to OpenRouter: %w", err))
	}

	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = sanitizeResponse(raw)
		}
		err := fmt.Errorf("OpenRouter API returned status %d: %s", resp.StatusCode(), msg)
		common.LogAICall(s.model, time.Since(start), err)
		return nil, common.ErrAIServiceError.Wrap(err)
	}

	if !gjson.ValidBytes(raw) {
		err := fmt.Errorf("invalid OpenRouter response: %s", common.Truncate(sanitizeResponse(raw), 200))
		common.LogAICall(s.model, time.Since(start), err)
		return nil, common.ErrAIServiceError.Wrap(err)
	}

	parsed := gjson.ParseBytes(raw)
	if msg := parsed.Get("error.message"); msg.Exists() {
		err := fmt.Errorf("OpenRouter error: %s", msg.String())
		common.LogAICall(s.model, time.Since(start), err)
		return nil, common.ErrAIServiceError.Wrap(err)
	}

	content := parsed.Get("choices.0.message.content")
	if !content.Exists() {
		err := fmt.Errorf("no choices in OpenRouter response")
		common.LogAICall(s.model, time.Since(start), err)
		return nil, common.ErrAIServiceError.Wrap(err)
	}

	model := parsed.Get("model").String()
	if model == "" {
		model = s.model
	}

	common.LogAICall(model, time.Since(start), nil)
	common.LogDebug("OpenRouter response",
		zap.String("content_preview", common.Truncate(content.String(), 200)),
	)

	return &provider.Response{
		Content: content.String(),
		Model:   model,
		Usage: common.Usage{
			PromptTokens:     int(parsed.Get("usage.prompt_tokens").Int()),
			CompletionTokens: int(parsed.Get("usage.completion_tokens").Int()),
			TotalTokens:      int(parsed.Get("usage.total_tokens").Int()),
		},
	}, nil
}

func (s *OpenRouterService) buildRequest(req *provider.Request) *chatRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = s.temperature
	}

	messages := make([]common.ChatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, common.ChatMessage{
			Role:    "system",
			Content: []common.ContentPart{common.TextPart(req.SystemPrompt)},
		})
	}

	parts := make([]common.ContentPart, 0, len(req.Images)+1)
	parts = append(parts, common.TextPart(req.Text))
	for _, img := range req.Images {
		url := img
		if !strings.HasPrefix(img, "data:image/") && !strings.HasPrefix(img, "http") {
			url = fmt.Sprintf("data:image/jpeg;base64,%s", img)
		}
		parts = append(parts, common.ImagePart(url))
	}
	messages = append(messages, common.ChatMessage{Role: "user", Content: parts})

	return &chatRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

var base64Run = regexp.MustCompile(`data:image/[a-zA-Z+.-]+;base64,[A-Za-z0-9+/=]+`)

// sanitizeResponse 移除回應內容中的圖片資料，供日誌與錯誤訊息使用
func sanitizeResponse(body []byte) string {
	return base64Run.ReplaceAllString(string(body), "[IMAGE_DATA_REMOVED]")
}

// GetModel 獲取當前使用的模型名稱
func (s *OpenRouterService) GetModel() string {
	return s.model
}

// GetTimeout 獲取請求超時時間
func (s *OpenRouterService) GetTimeout() time.Duration {
	return s.timeout
}

// Close 關閉客戶端
func (s *OpenRouterService) Close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}
