package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.Provider.BaseURL)
	assert.Equal(t, DefaultModel, cfg.Provider.Model)
	assert.InDelta(t, 0.3, cfg.Provider.Temperature, 1e-9)
	assert.True(t, cfg.Provider.Stream)
	assert.Equal(t, 5, cfg.Runner.MaxToolHops)
	assert.Equal(t, "result", cfg.Runner.ResultKey)
	assert.True(t, cfg.Workflow.Enabled)
	assert.Equal(t, 1, cfg.Workflow.MaxRecoveries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.Equal(t, DefaultGatewayPort, cfg.Gateway.Port)
	assert.Equal(t, DefaultEmbeddingModel, cfg.RAG.EmbeddingModel)
	assert.Equal(t, DefaultChunkSize, cfg.RAG.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, DefaultTopK, cfg.RAG.TopK)
	assert.InDelta(t, DefaultMMRLambda, cfg.RAG.Lambda, 1e-9)
}

func TestLoad_FromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	content := `
provider:
  model: deepseek-reasoner
  temperature: 0.7
  timeout: 30s
runner:
  max_tool_hops: 3
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "deepseek-reasoner", cfg.Provider.Model)
	assert.InDelta(t, 0.7, cfg.Provider.Temperature, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 3, cfg.Runner.MaxToolHops)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep defaults
	assert.Equal(t, DefaultBaseURL, cfg.Provider.BaseURL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Provider.Model)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("provider: [unclosed"), 0644))

	_, err := Load(configFile)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHATKIT_PROVIDER_API_KEY", "sk-from-env")
	t.Setenv("CHATKIT_RUNNER_MAX_TOOL_HOPS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Provider.APIKey)
	assert.Equal(t, 7, cfg.Runner.MaxToolHops)
}

func TestNormalize(t *testing.T) {
	cfg := Config{}
	cfg.Provider.Temperature = 5
	cfg.Runner.MaxToolHops = -1
	cfg.Workflow.MaxRecoveries = -3

	cfg.Normalize()

	assert.Equal(t, 2.0, cfg.Provider.Temperature)
	assert.Equal(t, DefaultMaxToolHops, cfg.Runner.MaxToolHops)
	assert.Equal(t, 0, cfg.Workflow.MaxRecoveries)
	assert.Equal(t, DefaultResultKey, cfg.Runner.ResultKey)
	assert.Equal(t, DefaultTimeout, cfg.Provider.Timeout)
}

func TestNormalize_RAG(t *testing.T) {
	cfg := Config{}
	cfg.RAG.ChunkSize = 100
	cfg.RAG.ChunkOverlap = 100
	cfg.RAG.Lambda = 3

	cfg.Normalize()

	assert.Equal(t, 20, cfg.RAG.ChunkOverlap)
	assert.InDelta(t, DefaultMMRLambda, cfg.RAG.Lambda, 1e-9)
	assert.Equal(t, DefaultTopK, cfg.RAG.TopK)
	assert.Equal(t, DefaultEmbeddingModel, cfg.RAG.EmbeddingModel)
}

func TestRAGProvider_FallsBackToProvider(t *testing.T) {
	cfg := Config{}
	cfg.Provider.BaseURL = "https://chat.example"
	cfg.Provider.APIKey = "sk-chat"

	base, key := cfg.RAGProvider()
	assert.Equal(t, "https://chat.example", base)
	assert.Equal(t, "sk-chat", key)

	cfg.RAG.BaseURL = "https://embed.example"
	cfg.RAG.APIKey = "sk-embed"
	base, key = cfg.RAGProvider()
	assert.Equal(t, "https://embed.example", base)
	assert.Equal(t, "sk-embed", key)
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Provider.APIKey = "sk-1234567890"

	cfg.RAG.APIKey = "sk-embedding-key"

	red := cfg.Redacted()
	assert.Equal(t, "sk-***90", red.Provider.APIKey)
	assert.Equal(t, "sk-***ey", red.RAG.APIKey)
	assert.Equal(t, "sk-1234567890", cfg.Provider.APIKey, "original must not change")
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Provider.Model = "custom-model"
	cfg.Runner.MaxToolHops = 9

	require.NoError(t, SaveTo(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", loaded.Provider.Model)
	assert.Equal(t, 9, loaded.Runner.MaxToolHops)
}

func TestWatch_RequiresFile(t *testing.T) {
	l, err := NewLoader("")
	require.NoError(t, err)
	assert.Error(t, l.Watch(func(*Config) {}))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/x/y.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.yaml"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDefaultPaths(t *testing.T) {
	p, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, filepath.Join(".chatkit", "config.yaml")))

	d, err := DefaultDataPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(d, filepath.Join(".chatkit", "chatkit.db")))
}
