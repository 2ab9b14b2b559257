package config

import (
	"time"

	"github.com/spf13/viper"
)

// 默认值
const (
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.3
	DefaultTimeout     = 2 * time.Minute
	DefaultMaxToolHops = 5
	DefaultResultKey   = "result"
	DefaultGatewayHost = "127.0.0.1"
	DefaultGatewayPort = 18790

	DefaultRequestsPerMinute = 60
	DefaultRateBurst         = 10

	DefaultEmbeddingModel = "text-embedding-v4"
	DefaultChunkSize      = 400
	DefaultChunkOverlap   = 80
	DefaultTopK           = 3
	DefaultMMRLambda      = 0.7
)

// SetDefaults 设置所有配置项的默认值
func SetDefaults(v *viper.Viper) {
	// Provider
	v.SetDefault("provider.base_url", DefaultBaseURL)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", DefaultModel)
	v.SetDefault("provider.temperature", DefaultTemperature)
	v.SetDefault("provider.max_tokens", 0)
	v.SetDefault("provider.timeout", DefaultTimeout)
	v.SetDefault("provider.stream", true)

	// Runner
	v.SetDefault("runner.max_tool_hops", DefaultMaxToolHops)
	v.SetDefault("runner.result_key", DefaultResultKey)
	v.SetDefault("runner.stream_through", false)
	v.SetDefault("runner.show_debug", false)

	// Workflow
	// 开启时第一轮请求不带 tools, 模型只能直接回答或返回工作流计划;
	// 需要 calculator 等函数调用时设置 workflow.enabled: false
	v.SetDefault("workflow.enabled", true)
	v.SetDefault("workflow.max_recoveries", 1)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	// Storage
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.disabled", false)

	// Gateway
	v.SetDefault("gateway.host", DefaultGatewayHost)
	v.SetDefault("gateway.port", DefaultGatewayPort)
	v.SetDefault("gateway.rate_limit.enabled", false)
	v.SetDefault("gateway.rate_limit.requests_per_minute", DefaultRequestsPerMinute)
	v.SetDefault("gateway.rate_limit.burst", DefaultRateBurst)

	// RAG
	v.SetDefault("rag.base_url", "")
	v.SetDefault("rag.api_key", "")
	v.SetDefault("rag.embedding_model", DefaultEmbeddingModel)
	v.SetDefault("rag.chunk_size", DefaultChunkSize)
	v.SetDefault("rag.chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("rag.top_k", DefaultTopK)
	v.SetDefault("rag.lambda", DefaultMMRLambda)
}
