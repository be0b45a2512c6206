package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_A", "alpha")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "key: ${TEST_EXPAND_A}", "key: alpha"},
		{"simple", "key: $TEST_EXPAND_A", "key: alpha"},
		{"default used", "key: ${TEST_EXPAND_UNSET:-fallback}", "key: fallback"},
		{"default ignored when set", "key: ${TEST_EXPAND_A:-fallback}", "key: alpha"},
		{"unset braced becomes empty", "key: ${TEST_EXPAND_UNSET}", "key: "},
		{"no references", "key: plain", "key: plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestDetectProviderFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	assert.Equal(t, LLMProviderOllama, detectProviderFromEnv())

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	assert.Equal(t, LLMProviderAnthropic, detectProviderFromEnv())

	t.Setenv("OPENAI_API_KEY", "sk-oai")
	assert.Equal(t, LLMProviderOpenAI, detectProviderFromEnv())
}
