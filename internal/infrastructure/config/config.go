package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Queue       QueueConfig      `mapstructure:"queue"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Image       ImageConfig      `mapstructure:"image"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	History     HistoryConfig    `mapstructure:"history"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig Redis 連線設定（cache.backend=redis 時使用）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 請求隊列設定
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes int64         `mapstructure:"max_size_bytes"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// AnalysisConfig 分析流程設定
type AnalysisConfig struct {
	MaxImages        int           `mapstructure:"max_images"`
	MaxResponseBytes int           `mapstructure:"max_response_bytes"`
	PageTextLimit    int           `mapstructure:"page_text_limit"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
}

// HistoryConfig 分析紀錄設定
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Addr 監聽位址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// LoadConfig 從目前目錄的 .env 與環境變數載入設定
func LoadConfig() (*Config, error) {
	return Load(".env")
}

// Load 載入設定；envFile 不存在時只使用環境變數與預設值
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindings := map[string]string{
		"openrouter.api_key":          "OPENROUTER_API_KEY",
		"openrouter.model":            "OPENROUTER_MODEL",
		"openrouter.base_url":         "OPENROUTER_BASE_URL",
		"openrouter.max_tokens":       "MODEL_MAX_TOKENS",
		"server.port":                 "PORT",
		"cache.enabled":               "CACHE_ENABLED",
		"cache.backend":               "CACHE_BACKEND",
		"redis.addr":                  "REDIS_ADDR",
		"redis.password":              "REDIS_PASSWORD",
		"rate_limit.enabled":          "RATE_LIMIT_ENABLED",
		"rate_limit.requests":         "RATE_LIMIT_REQUESTS",
		"rate_limit.window":           "RATE_LIMIT_WINDOW",
		"history.enabled":             "HISTORY_ENABLED",
		"history.path":                "HISTORY_PATH",
		"analysis.max_images":         "ANALYSIS_MAX_IMAGES",
		"analysis.max_response_bytes": "ANALYSIS_MAX_RESPONSE_BYTES",
		"dedup_window":                "DEDUP_WINDOW",
		"log_level":                   "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "carb-estimator")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "75s")
	v.SetDefault("server.max_body_bytes", 32*1024*1024) // 32MB
	v.SetDefault("server.allow_origins", []string{"*"})

	// OpenRouter 設定
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "qwen/qwen2.5-vl-72b-instruct:free")
	v.SetDefault("openrouter.max_tokens", 1000)
	v.SetDefault("openrouter.temperature", 0.2)
	v.SetDefault("openrouter.timeout", "60s")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Redis 設定
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "carb:ai:")

	// 隊列設定
	v.SetDefault("queue.workers", 5)
	v.SetDefault("queue.max_size", 100)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	v.SetDefault("image.fetch_timeout", "15s")

	// 分析設定
	v.SetDefault("analysis.max_images", 4)
	v.SetDefault("analysis.max_response_bytes", 256*1024)
	v.SetDefault("analysis.page_text_limit", 12000)
	v.SetDefault("analysis.fetch_timeout", "15s")

	// 紀錄設定
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "data/history.db")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		switch config.Cache.Backend {
		case "memory":
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return fmt.Errorf("invalid cache cleanup interval")
			}
		case "redis":
			if config.Redis.Addr == "" {
				return fmt.Errorf("redis addr is required for redis cache backend")
			}
		default:
			return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	// 驗證隊列設定
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	// 驗證限流設定
	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit settings")
	}

	// 驗證分析設定
	if config.Analysis.MaxImages <= 0 {
		return fmt.Errorf("invalid analysis max images")
	}
	if config.Analysis.PageTextLimit <= 0 {
		return fmt.Errorf("invalid analysis page text limit")
	}
	if config.History.Enabled && config.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}

	return nil
}
