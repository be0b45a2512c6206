// Package config defines the configuration surface of the agora toolkit and
// loads it from YAML files with environment expansion.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMProvider identifies the reasoning backend type.
type LLMProvider string

const (
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
	LLMProviderGemini    LLMProvider = "gemini"
	LLMProviderOllama    LLMProvider = "ollama"
)

// LLMConfig configures a reasoning backend.
type LLMConfig struct {
	// Provider type (openai, anthropic, gemini, ollama).
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=Reasoning backend provider,enum=openai,enum=anthropic,enum=gemini,enum=ollama,default=openai"`

	// Model name (e.g. "gpt-4o", "claude-sonnet-4-20250514").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for the API endpoint"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature,minimum=0,maximum=2,default=0.2"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=4096"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-request timeout in seconds,default=120"`

	// MaxRetries bounds HTTP-level retries on rate limits and server errors.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=HTTP retry budget,default=3"`

	// RetryDelay is the base retry backoff in seconds.
	RetryDelay int `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty" jsonschema:"title=Retry Delay,description=Base retry backoff in seconds,default=2"`

	// MaxToolIterations bounds the tool-call loop within one conversation turn.
	MaxToolIterations int `yaml:"max_tool_iterations,omitempty" json:"max_tool_iterations,omitempty" jsonschema:"title=Max Tool Iterations,description=Bound on backend tool-call rounds per turn,default=10"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Provider {
		case LLMProviderOpenAI:
			c.Model = "gpt-4o"
		case LLMProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		}
	}

	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Provider)
	}

	if c.Temperature == nil {
		temp := 0.2
		c.Temperature = &temp
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
	if c.MaxToolIterations == 0 {
		c.MaxToolIterations = 10
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOpenAI, LLMProviderAnthropic, LLMProviderGemini, LLMProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM provider: %s (supported: openai, anthropic, gemini, ollama)", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Provider != LLMProviderOllama && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %s", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", *c.Temperature)
	}
	return nil
}

// NegotiationConfig bounds the sender-side negotiation state machine.
type NegotiationConfig struct {
	// MaxRounds bounds the negotiation; reaching it without a final protocol
	// is a normal terminal outcome, not an error.
	MaxRounds int `yaml:"max_rounds,omitempty" json:"max_rounds,omitempty" jsonschema:"title=Max Rounds,description=Bound on negotiation rounds,default=10"`

	// RoundTimeout is the timeout in seconds for one backend turn within a
	// round; it does not cover the counterparty exchange. Zero takes the
	// default, a negative value disables the timeout.
	RoundTimeout int `yaml:"round_timeout,omitempty" json:"round_timeout,omitempty" jsonschema:"title=Round Timeout,description=Backend-turn timeout in seconds (negative disables),default=300"`
}

func (c *NegotiationConfig) SetDefaults() {
	if c.MaxRounds == 0 {
		c.MaxRounds = 10
	}
	if c.RoundTimeout == 0 {
		c.RoundTimeout = 300
	}
}

func (c *NegotiationConfig) Validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be at least 1, got %d", c.MaxRounds)
	}
	return nil
}

// ProgrammerConfig bounds the adapter synthesis loop.
type ProgrammerConfig struct {
	// MaxAttempts bounds how often the backend is asked for an implementation.
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty" jsonschema:"title=Max Attempts,description=Bound on synthesis attempts,default=5"`

	// AttemptTimeout is the per-attempt timeout in seconds. Zero takes the
	// default, a negative value disables the timeout.
	AttemptTimeout int `yaml:"attempt_timeout,omitempty" json:"attempt_timeout,omitempty" jsonschema:"title=Attempt Timeout,description=Per-attempt timeout in seconds (negative disables),default=300"`
}

func (c *ProgrammerConfig) SetDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = 300
	}
}

func (c *ProgrammerConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}

// ObservabilityConfig enables tracing and metrics.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`
}

// MetricsConfig configures the Prometheus metrics exporter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4317"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
}

// MCPServerConfig configures one MCP tool server (stdio transport).
type MCPServerConfig struct {
	// Name identifies this server.
	Name string `yaml:"name" json:"name" jsonschema:"title=Name,description=Server identifier"`

	// Command spawns the server subprocess.
	Command string `yaml:"command" json:"command" jsonschema:"title=Command,description=Server subprocess command"`

	// Args for the subprocess.
	Args []string `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Args,description=Subprocess arguments"`

	// Env for the subprocess, as KEY=VALUE pairs.
	Env []string `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Env,description=Subprocess environment"`

	// Filter limits which tools are exposed. Empty means all.
	Filter []string `yaml:"filter,omitempty" json:"filter,omitempty" jsonschema:"title=Filter,description=Tool names to expose"`
}

func (c *MCPServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Command == "" {
		return fmt.Errorf("command is required")
	}
	return nil
}

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"title=Level,description=Log level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"title=Format,description=Log format,enum=simple,enum=verbose,default=simple"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty"`
	Negotiation   NegotiationConfig   `yaml:"negotiation,omitempty" json:"negotiation,omitempty"`
	Programmer    ProgrammerConfig    `yaml:"programmer,omitempty" json:"programmer,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
	Logger        LoggerConfig        `yaml:"logger,omitempty" json:"logger,omitempty"`
	MCPServers    []MCPServerConfig   `yaml:"mcp_servers,omitempty" json:"mcp_servers,omitempty"`
}

// SetDefaults applies defaults recursively.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Negotiation.SetDefaults()
	c.Programmer.SetDefaults()
	c.Observability.SetDefaults()
	c.Logger.SetDefaults()
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Negotiation.Validate(); err != nil {
		return fmt.Errorf("negotiation: %w", err)
	}
	if err := c.Programmer.Validate(); err != nil {
		return fmt.Errorf("programmer: %w", err)
	}
	for i := range c.MCPServers {
		if err := c.MCPServers[i].Validate(); err != nil {
			return fmt.Errorf("mcp_servers[%d]: %w", i, err)
		}
	}
	return nil
}

// Load reads a YAML config file, expands environment references, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default builds a configuration entirely from defaults and environment.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
