package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Service Redis 快取，多個實例共用
type Service struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewService 連線 Redis 並建立快取服務
func NewService(cfg *config.Config) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 3 * time.Second,
	})

	// 測試連接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("快取管理員已初始化",
		zap.String("backend", "redis"),
		zap.String("addr", cfg.Redis.Addr),
		zap.Duration("存活時間", cfg.Cache.TTL),
	)

	return NewServiceWithClient(client, cfg.Redis.Prefix, cfg.Cache.TTL), nil
}

// NewServiceWithClient 使用既有的 Redis client
func NewServiceWithClient(client *redis.Client, prefix string, ttl time.Duration) *Service {
	return &Service{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get 獲取緩存
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.misses.Add(1)
			return "", common.ErrCacheMiss
		}
		s.errors.Add(1)
		return "", fmt.Errorf("failed to get cache: %w", err)
	}

	s.hits.Add(1)
	return value, nil
}

// Set 設置緩存
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		s.errors.Add(1)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Stats 獲取緩存統計信息
func (s *Service) Stats() map[string]interface{} {
	hits, misses := s.hits.Load(), s.misses.Load()
	return map[string]interface{}{
		"backend":   "redis",
		"hits":      hits,
		"misses":    misses,
		"errors":    s.errors.Load(),
		"hit_ratio": hitRatio(hits, misses),
	}
}

// Close 關閉 Redis 連線
func (s *Service) Close() error {
	return s.client.Close()
}
