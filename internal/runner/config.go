package runner

import "chatkit/internal/config"

// Config holds configuration for the session driver and the dispatch loop.
type Config struct {
	// Model overrides the provider's default model when set.
	Model string `json:"model,omitempty"`

	// Temperature controls the randomness of the model output.
	// Default is 0.3.
	Temperature float64 `json:"temperature"`

	// MaxTokens caps model output. Zero leaves it to the provider.
	MaxTokens int `json:"max_tokens,omitempty"`

	// MaxToolHops bounds how many tool rounds one request may take.
	// Default is 5.
	MaxToolHops int `json:"max_tool_hops"`

	// ResultKey is the JSON field streamed live to the partial callback.
	// Default is "result".
	ResultKey string `json:"result_key"`

	// StreamThrough forwards raw content deltas to the partial callback
	// instead of only the extracted field.
	StreamThrough bool `json:"stream_through"`

	// Stream selects the streaming request path. When false every exchange
	// goes through the non-streaming fallback.
	// Default is true.
	Stream bool `json:"stream"`

	// Workflow enables the plan-first intent pass and the workflow executor.
	Workflow bool `json:"workflow"`

	// MaxRecoveries bounds model-assisted retries per workflow step.
	// Default is 1.
	MaxRecoveries int `json:"max_recoveries"`

	// SystemPrompt is prepended when the history does not start with one.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Temperature:   config.DefaultTemperature,
		MaxToolHops:   config.DefaultMaxToolHops,
		ResultKey:     config.DefaultResultKey,
		Stream:        true,
		Workflow:      true,
		MaxRecoveries: 1,
	}
}

// FromAppConfig maps the application config onto a runner Config.
func FromAppConfig(c *config.Config) Config {
	return Config{
		Model:         c.Provider.Model,
		Temperature:   c.Provider.Temperature,
		MaxTokens:     c.Provider.MaxTokens,
		MaxToolHops:   c.Runner.MaxToolHops,
		ResultKey:     c.Runner.ResultKey,
		StreamThrough: c.Runner.StreamThrough,
		Stream:        c.Provider.Stream,
		Workflow:      c.Workflow.Enabled,
		MaxRecoveries: c.Workflow.MaxRecoveries,
		SystemPrompt:  c.Runner.SystemPrompt,
	}.Normalize()
}

// WithModel returns a copy of the config with the specified model.
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithTemperature returns a copy of the config with the specified temperature.
func (c Config) WithTemperature(t float64) Config {
	c.Temperature = t
	return c
}

// WithMaxToolHops returns a copy of the config with the specified hop limit.
func (c Config) WithMaxToolHops(n int) Config {
	c.MaxToolHops = n
	return c
}

// WithResultKey returns a copy of the config with the specified result key.
func (c Config) WithResultKey(key string) Config {
	c.ResultKey = key
	return c
}

// WithStreamThrough returns a copy of the config with raw delta forwarding set.
func (c Config) WithStreamThrough(enabled bool) Config {
	c.StreamThrough = enabled
	return c
}

// WithStream returns a copy of the config with the streaming path set.
func (c Config) WithStream(enabled bool) Config {
	c.Stream = enabled
	return c
}

// WithWorkflow returns a copy of the config with the workflow path set.
func (c Config) WithWorkflow(enabled bool) Config {
	c.Workflow = enabled
	return c
}

// WithSystemPrompt returns a copy of the config with the specified system prompt.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// Normalize returns a copy with out-of-range values replaced by defaults.
func (c Config) Normalize() Config {
	if c.MaxToolHops <= 0 {
		c.MaxToolHops = config.DefaultMaxToolHops
	}
	if c.ResultKey == "" {
		c.ResultKey = config.DefaultResultKey
	}
	if c.MaxTokens < 0 {
		c.MaxTokens = 0
	}
	if c.MaxRecoveries < 0 {
		c.MaxRecoveries = 0
	}
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.Temperature > 2 {
		c.Temperature = 2
	}
	return c
}
