package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMConfigDefaults(t *testing.T) {
	tests := []struct {
		provider  LLMProvider
		wantModel string
	}{
		{LLMProviderOpenAI, "gpt-4o"},
		{LLMProviderAnthropic, "claude-sonnet-4-20250514"},
		{LLMProviderGemini, "gemini-2.0-flash"},
		{LLMProviderOllama, "llama3.2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			cfg := &LLMConfig{Provider: tt.provider}
			cfg.SetDefaults()

			assert.Equal(t, tt.wantModel, cfg.Model)
			assert.Equal(t, 4096, cfg.MaxTokens)
			assert.Equal(t, 120, cfg.Timeout)
			assert.Equal(t, 10, cfg.MaxToolIterations)
			require.NotNil(t, cfg.Temperature)
			assert.Equal(t, 0.2, *cfg.Temperature)
		})
	}
}

func TestLLMConfigValidateRequiresAPIKey(t *testing.T) {
	cfg := &LLMConfig{Provider: LLMProviderOpenAI, Model: "gpt-4o"}
	assert.Error(t, cfg.Validate())

	cfg.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	// Ollama runs locally and needs no key.
	local := &LLMConfig{Provider: LLMProviderOllama, Model: "llama3.2"}
	assert.NoError(t, local.Validate())
}

func TestNegotiationConfigDefaults(t *testing.T) {
	cfg := &NegotiationConfig{}
	cfg.SetDefaults()
	assert.Equal(t, 10, cfg.MaxRounds)
	assert.Equal(t, 300, cfg.RoundTimeout)
	assert.NoError(t, cfg.Validate())

	bad := &NegotiationConfig{MaxRounds: -1}
	assert.Error(t, bad.Validate())
}

func TestNegotiationConfigNegativeTimeoutDisables(t *testing.T) {
	cfg := &NegotiationConfig{RoundTimeout: -1}
	cfg.SetDefaults()

	// A negative timeout means disabled and must survive defaulting and
	// validation, otherwise there is no way to turn the timeout off.
	assert.Equal(t, -1, cfg.RoundTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestProgrammerConfigDefaults(t *testing.T) {
	cfg := &ProgrammerConfig{}
	cfg.SetDefaults()
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_AGORA_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o
  api_key: ${TEST_AGORA_KEY}
negotiation:
  max_rounds: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Negotiation.MaxRounds)
	// Untouched sections still get defaults.
	assert.Equal(t, 5, cfg.Programmer.MaxAttempts)
}

func TestLoadEnvVarDefaultSyntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: ollama
  base_url: ${TEST_AGORA_MISSING_HOST:-http://localhost:11434}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: openai
  api_key: sk-test
negotiation:
  max_rounds: -5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMCPServerConfigValidation(t *testing.T) {
	valid := MCPServerConfig{Name: "files", Command: "mcp-files"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&MCPServerConfig{Command: "mcp-files"}).Validate())
	assert.Error(t, (&MCPServerConfig{Name: "files"}).Validate())
}

func TestConfigValidateChecksMCPServers(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = LLMProviderOllama
	cfg.LLM.APIKey = ""
	cfg.MCPServers = []MCPServerConfig{{Name: "broken"}}

	assert.Error(t, cfg.Validate())
}
