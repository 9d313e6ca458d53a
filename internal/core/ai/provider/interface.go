package provider

import (
	"context"
	"time"

	"carb-estimator/internal/pkg/common"
)

// Request 表示發送到 AI 提供者的請求
type Request struct {
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Text         string   `json:"text"`
	Images       []string `json:"-"` // data URI，不進日誌
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  float64  `json:"temperature,omitempty"`
}

// Response 表示從 AI 提供者收到的響應
type Response struct {
	Content  string       `json:"content"`
	Model    string       `json:"model"`
	Usage    common.Usage `json:"usage"`
	CacheHit bool         `json:"cache_hit"`
}

// Provider 定義 AI 提供者介面
type Provider interface {
	// Generate 生成 AI 響應
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// GetTimeout 獲取請求超時時間
	GetTimeout() time.Duration

	// Close 關閉提供者連接
	Close() error
}
