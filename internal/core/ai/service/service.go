package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"carb-estimator/internal/core/ai/cache"
	"carb-estimator/internal/core/ai/provider"
	"carb-estimator/internal/core/ai/queue"
	"carb-estimator/internal/core/image"
	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"go.uber.org/zap"
)

// Request 一次模型呼叫的輸入
type Request struct {
	SystemPrompt string
	Prompt       string
	Images       []string // data URI 或 http(s) URL
	// Cacheable 為 nil 時一律快取；回傳 false 的回應不寫入快取
	Cacheable func(content string) bool
}

// Response AI 回應
type Response struct {
	Content  string
	Model    string
	CacheHit bool
	Usage    common.Usage
}

// Service AI 服務：圖片前處理、快取、隊列與上游限流
type Service struct {
	provider provider.Provider
	cache    cache.Cache
	queue    *queue.Manager
	imageSvc *image.Service

	rateLimit config.RateLimitConfig
	mu        sync.Mutex
	calls     []time.Time
}

// NewService 創建 AI 服務；cache 可為 nil
func NewService(cfg *config.Config, p provider.Provider, c cache.Cache, q *queue.Manager) *Service {
	return &Service{
		provider:  p,
		cache:     c,
		queue:     q,
		imageSvc:  image.NewService(cfg.Image.MaxSizeBytes, cfg.Image.FetchTimeout),
		rateLimit: cfg.RateLimit,
	}
}

// ProcessRequest 統一對外方法
func (s *Service) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	prompt := normalizePrompt(req.Prompt)

	images, err := s.imageSvc.ProcessImages(ctx, req.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	key := cache.GenerateKey(s.provider.GetModel(), normalizePrompt(req.SystemPrompt)+"\n"+prompt, images...)

	// 檢查緩存
	if s.cache != nil {
		val, err := s.cache.Get(ctx, key)
		switch {
		case err == nil && val != "":
			common.LogCacheHit("ai_response")
			return &Response{Content: val, Model: s.provider.GetModel(), CacheHit: true}, nil
		case err != nil && !errors.Is(err, common.ErrCacheMiss):
			common.LogWarn("Cache lookup failed", zap.Error(err))
		default:
			common.LogCacheMiss("ai_response")
		}
	}

	if err := s.checkRequestRate(); err != nil {
		return nil, err
	}

	providerReq := &provider.Request{
		SystemPrompt: req.SystemPrompt,
		Text:         prompt,
		Images:       images,
	}
	resp, err := s.queue.Submit(ctx, func(ctx context.Context) (*provider.Response, error) {
		if timeout := s.provider.GetTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return s.provider.Generate(ctx, providerReq)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil && (req.Cacheable == nil || req.Cacheable(resp.Content)) {
		if err := s.cache.Set(ctx, key, resp.Content); err != nil {
			common.LogWarn("Cache store failed", zap.Error(err))
		}
	}

	return &Response{
		Content: resp.Content,
		Model:   resp.Model,
		Usage:   resp.Usage,
	}, nil
}

// Model 目前使用的模型
func (s *Service) Model() string {
	return s.provider.GetModel()
}

// normalizePrompt 統一 prompt 空白，確保快取 key 一致
func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}

// checkRequestRate 同一時間窗內上游呼叫次數不超過 rate_limit.requests
func (s *Service) checkRequestRate() error {
	if !s.rateLimit.Enabled || s.rateLimit.Requests <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.rateLimit.Window)
	kept := s.calls[:0]
	for _, t := range s.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.calls = kept

	if len(s.calls) >= s.rateLimit.Requests {
		return common.ErrTooManyRequests.Wrap(errors.New("upstream request rate limit exceeded"))
	}

	s.calls = append(s.calls, now)
	return nil
}
