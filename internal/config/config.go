// Package config loads chatkit configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"chatkit/pkg/logger"
)

// EnvPrefix 环境变量前缀, 例如 CHATKIT_PROVIDER_API_KEY
const EnvPrefix = "CHATKIT"

// Config 是应用配置的根结构体
type Config struct {
	Provider ProviderConfig   `mapstructure:"provider" yaml:"provider"`
	Runner   RunnerConfig     `mapstructure:"runner" yaml:"runner"`
	Workflow WorkflowConfig   `mapstructure:"workflow" yaml:"workflow"`
	Log      logger.LogConfig `mapstructure:"log" yaml:"log"`
	Storage  StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Gateway  GatewayConfig    `mapstructure:"gateway" yaml:"gateway"`
	RAG      RAGConfig        `mapstructure:"rag" yaml:"rag"`
}

// ProviderConfig OpenAI 兼容的 chat completions 服务配置
type ProviderConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Stream      bool          `mapstructure:"stream" yaml:"stream"` // false 时使用非流式回退
}

// RunnerConfig 会话驱动与工具循环配置
type RunnerConfig struct {
	MaxToolHops   int    `mapstructure:"max_tool_hops" yaml:"max_tool_hops"`
	ResultKey     string `mapstructure:"result_key" yaml:"result_key"`
	StreamThrough bool   `mapstructure:"stream_through" yaml:"stream_through"` // 原始 content 也推送给 partial 回调
	ShowDebug     bool   `mapstructure:"show_debug" yaml:"show_debug"`
	SystemPrompt  string `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
}

// WorkflowConfig 工作流执行配置
//
// Enabled 为 true 时第一轮只做意图判断, 不向模型提供工具, 函数调用路径
// 因此不可达; 关闭后第一轮带上全部工具, 由模型自行发起调用。
type WorkflowConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	MaxRecoveries int  `mapstructure:"max_recoveries" yaml:"max_recoveries"`
}

// StorageConfig 会话存储配置
type StorageConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
}

// GatewayConfig 网关配置
type GatewayConfig struct {
	Host      string          `mapstructure:"host" yaml:"host"`
	Port      int             `mapstructure:"port" yaml:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig 按客户端 IP 的令牌桶限流
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int  `mapstructure:"burst" yaml:"burst"`
}

// RAGConfig 文档问答配置. base_url 与 api_key 为空时沿用 provider 的设置
type RAGConfig struct {
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	EmbeddingModel string  `mapstructure:"embedding_model" yaml:"embedding_model"`
	ChunkSize      int     `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	TopK           int     `mapstructure:"top_k" yaml:"top_k"`
	Lambda         float64 `mapstructure:"lambda" yaml:"lambda"` // MMR 相关性权重
}

// Addr returns host:port.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// Loader 持有一个私有 viper 实例, 不使用包级全局状态
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader for the given config file path. An empty path
// means defaults and environment only.
func NewLoader(path string) (*Loader, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if expanded != "" {
		v.SetConfigFile(expanded)
	}

	return &Loader{v: v, path: expanded}, nil
}

// Path returns the expanded config file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the config file (if any) and returns a validated Config.
// 优先级: ENV > 配置文件 > 默认值
func (l *Loader) Load() (*Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			// 忽略文件不存在错误
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", l.path, err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Load is a shorthand for NewLoader(path) followed by Load.
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// Normalize clamps out-of-range values back to defaults.
func (c *Config) Normalize() {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultModel
	}
	if c.Provider.Temperature < 0 {
		c.Provider.Temperature = 0
	}
	if c.Provider.Temperature > 2 {
		c.Provider.Temperature = 2
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = DefaultTimeout
	}
	if c.Runner.MaxToolHops <= 0 {
		c.Runner.MaxToolHops = DefaultMaxToolHops
	}
	if c.Runner.ResultKey == "" {
		c.Runner.ResultKey = DefaultResultKey
	}
	if c.Workflow.MaxRecoveries < 0 {
		c.Workflow.MaxRecoveries = 0
	}
	if c.Gateway.Port <= 0 {
		c.Gateway.Port = DefaultGatewayPort
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultGatewayHost
	}
	if c.Gateway.RateLimit.RequestsPerMinute <= 0 {
		c.Gateway.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.Gateway.RateLimit.Burst <= 0 {
		c.Gateway.RateLimit.Burst = DefaultRateBurst
	}
	if c.RAG.EmbeddingModel == "" {
		c.RAG.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = DefaultChunkSize
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = c.RAG.ChunkSize / 5
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = DefaultTopK
	}
	if c.RAG.Lambda <= 0 || c.RAG.Lambda > 1 {
		c.RAG.Lambda = DefaultMMRLambda
	}
}

// RAGProvider returns the endpoint and key used for embeddings.
func (c *Config) RAGProvider() (baseURL, apiKey string) {
	baseURL, apiKey = c.RAG.BaseURL, c.RAG.APIKey
	if baseURL == "" {
		baseURL = c.Provider.BaseURL
	}
	if apiKey == "" {
		apiKey = c.Provider.APIKey
	}
	return baseURL, apiKey
}

// Redacted returns a copy safe for printing.
func (c Config) Redacted() Config {
	c.Provider.APIKey = redact(c.Provider.APIKey)
	c.RAG.APIKey = redact(c.RAG.APIKey)
	return c
}

func redact(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) > 6:
		return key[:3] + "***" + key[len(key)-2:]
	default:
		return "***"
	}
}

// SaveTo 保存配置到指定路径
func SaveTo(cfg *Config, path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600: 文件可能包含 API Key
	return os.WriteFile(expanded, data, 0600)
}
