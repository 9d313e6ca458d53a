package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"
)

// Cache 模型原始回應的快取；未命中回傳 common.ErrCacheMiss
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Stats() map[string]interface{}
	Close() error
}

// New 依 cache.backend 建立快取；停用時回傳 nil
func New(cfg *config.Config) (Cache, error) {
	if !cfg.Cache.Enabled {
		common.LogInfo("Cache disabled")
		return nil, nil
	}

	switch cfg.Cache.Backend {
	case "redis":
		svc, err := NewService(cfg)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case "memory", "":
		return NewManager(cfg), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// GenerateKey 由模型、提示詞與圖片計算快取鍵
func GenerateKey(model, prompt string, images ...string) string {
	if len(images) == 0 {
		return fmt.Sprintf("text:%s:%s", model, hashString(prompt))
	}
	hashes := make([]string, len(images))
	for i, img := range images {
		hashes[i] = hashString(img)
	}
	return fmt.Sprintf("multimodal:%s:%s:%s", model, hashString(prompt), hashString(strings.Join(hashes, ",")))
}

// hashString 計算字符串的 SHA-256 哈希值
func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

func hitRatio(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
