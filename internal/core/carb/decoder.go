package carb

import (
	"errors"
	"fmt"

	"carb-estimator/internal/pkg/common"
)

var (
	// ErrEmptyResponse 模型回應為空
	ErrEmptyResponse = errors.New("empty model response")
	// ErrResponseTooLarge 模型回應超過上限
	ErrResponseTooLarge = errors.New("model response exceeds size limit")
	// ErrNotAnObject 合法 JSON 但頂層不是物件
	ErrNotAnObject = errors.New("model response is not a JSON object")
)

// Decoder 將模型原始文字轉為 Outcome，無狀態，可並行使用
type Decoder struct {
	profile  *Profile
	maxBytes int
}

// Option Decoder 設定
type Option func(*Decoder)

// WithMaxBytes 限制輸入長度，0 表示不限制
func WithMaxBytes(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxBytes = n
		}
	}
}

// NewDecoder 建立指定 profile 的 Decoder
func NewDecoder(p *Profile, opts ...Option) *Decoder {
	d := &Decoder{profile: p}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Profile 回傳使用中的 profile
func (d *Decoder) Profile() *Profile {
	return d.profile
}

// Decode Sanitize → 解析 → Normalize
func (d *Decoder) Decode(raw string) Outcome {
	if d.maxBytes > 0 && len(raw) > d.maxBytes {
		return DecodeFailureOutcome(fmt.Errorf("%w: %d > %d bytes", ErrResponseTooLarge, len(raw), d.maxBytes))
	}

	text := Sanitize(raw)
	if text == "" {
		return DecodeFailureOutcome(ErrEmptyResponse)
	}

	obj, err := parseObject(text)
	if err != nil {
		// 最寬範圍可能把兩個並列物件一起框進來，改用第一個平衡物件再試一次
		candidate, ok := firstBalancedObject(text)
		if !ok || candidate == text {
			return DecodeFailureOutcome(fmt.Errorf("failed to parse model response: %w", err))
		}
		var retryErr error
		if obj, retryErr = parseObject(candidate); retryErr != nil {
			return DecodeFailureOutcome(fmt.Errorf("failed to parse model response: %w", err))
		}
	}

	return Normalize(obj, d.profile)
}

// Decode 便利函式
func Decode(raw string, p *Profile) Outcome {
	return NewDecoder(p).Decode(raw)
}

func parseObject(text string) (map[string]any, error) {
	var v any
	if err := common.ParseJSON(text, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}
	return obj, nil
}
