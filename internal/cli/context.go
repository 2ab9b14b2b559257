package cli

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"chatkit/internal/config"
	"chatkit/internal/prompt"
	"chatkit/internal/provider"
	"chatkit/internal/provider/openai"
	"chatkit/internal/rag"
	"chatkit/internal/runner"
	"chatkit/internal/storage"
	"chatkit/internal/tools"
	"chatkit/internal/tools/builtin"
	"chatkit/internal/workflow"
	"chatkit/pkg/logger"
)

var errNoContext = errors.New("CLI context not initialized")

// CLIContext CLI 上下文
type CLIContext struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *zerolog.Logger
	StoragePath string // 为空表示禁用会话存储
	Verbose     bool
	Quiet       bool

	storageOnce sync.Once
	storage     *storage.DB
	storageErr  error

	registryOnce sync.Once
	registry     *tools.Registry
	registryErr  error

	qaOnce sync.Once
	qa     *rag.QA
}

// NewCLIContext 创建 CLI 上下文
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, storagePath string, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Logger:      log,
		StoragePath: storagePath,
		Verbose:     verbose,
		Quiet:       quiet,
	}
}

// GetStorage 获取存储连接（懒加载）. 存储被禁用时返回 nil, nil
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	if c.StoragePath == "" {
		return nil, nil
	}
	c.storageOnce.Do(func() {
		c.storage, c.storageErr = storage.Open(c.StoragePath)
	})
	return c.storage, c.storageErr
}

// Registry returns the built-in tool registry.
func (c *CLIContext) Registry() (*tools.Registry, error) {
	c.registryOnce.Do(func() {
		c.registry, c.registryErr = builtin.NewRegistryWithBuiltins()
	})
	return c.registry, c.registryErr
}

// Provider builds the chat completions client from the provider config.
func (c *CLIContext) Provider() provider.Provider {
	p := c.Config.Provider
	return openai.New(openai.Config{
		BaseURL:   p.BaseURL,
		APIKey:    p.APIKey,
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
		Timeout:   p.Timeout,
	})
}

// Runner wires provider, tools, workflow steps and the system prompt.
func (c *CLIContext) Runner() (*runner.Runner, error) {
	registry, err := c.Registry()
	if err != nil {
		return nil, err
	}

	var steps workflow.Registry
	if c.Config.Workflow.Enabled {
		steps = workflow.TravelRegistry()
	}

	r, err := runner.NewRunner(c.Provider(), registry, steps, runner.FromAppConfig(c.Config))
	if err != nil {
		return nil, err
	}

	// 自定义 system prompt 优先于模板
	if c.Config.Runner.SystemPrompt == "" {
		pc := prompt.DefaultPromptConfig()
		pc.ResultKey = c.Config.Runner.ResultKey
		pc.Workflow = c.Config.Workflow.Enabled
		r.SetSystemPrompt(prompt.NewSystemPromptBuilder(pc, registry))
	}
	return r, nil
}

// QA builds the document QA service. Embeddings go to the rag endpoint,
// answers to the chat provider; the chunk vector cache lives as long as
// the context.
func (c *CLIContext) QA() *rag.QA {
	c.qaOnce.Do(func() {
		baseURL, apiKey := c.Config.RAGProvider()
		embedder := openai.New(openai.Config{
			BaseURL:        baseURL,
			APIKey:         apiKey,
			EmbeddingModel: c.Config.RAG.EmbeddingModel,
			Timeout:        c.Config.Provider.Timeout,
		})
		c.qa = rag.NewQA(c.Provider(), embedder, runner.FromAppConfig(c.Config), rag.OptionsFromAppConfig(c.Config))
	})
	return c.qa
}

// Close 关闭资源
func (c *CLIContext) Close() error {
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}

// Log 获取 Logger
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
