package llms

import (
	"strings"
	"testing"

	"github.com/agora-protocol/agora-go/pkg/config"
)

func testLLMConfig(provider config.LLMProvider) *config.LLMConfig {
	cfg := &config.LLMConfig{
		Provider: provider,
		Model:    "test-model",
		APIKey:   "test-key",
	}
	cfg.SetDefaults()
	return cfg
}

func TestCreateFromConfigNilConfig(t *testing.T) {
	registry := NewToolformerRegistry()
	if _, err := registry.CreateFromConfig("default", nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestCreateFromConfigUnsupportedProvider(t *testing.T) {
	registry := NewToolformerRegistry()
	cfg := testLLMConfig("watson")

	_, err := registry.CreateFromConfig("default", cfg)
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	if !strings.Contains(err.Error(), "unsupported LLM provider") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateFromConfigAllProviders(t *testing.T) {
	providers := []config.LLMProvider{
		config.LLMProviderOpenAI,
		config.LLMProviderAnthropic,
		config.LLMProviderGemini,
		config.LLMProviderOllama,
	}

	for _, provider := range providers {
		t.Run(string(provider), func(t *testing.T) {
			registry := NewToolformerRegistry()
			tf, err := registry.CreateFromConfig("default", testLLMConfig(provider))
			if err != nil {
				t.Fatalf("CreateFromConfig failed: %v", err)
			}
			if tf.ModelName() != "test-model" {
				t.Errorf("expected model 'test-model', got %q", tf.ModelName())
			}

			registered, ok := registry.Get("default")
			if !ok {
				t.Fatal("toolformer not registered")
			}
			if registered != tf {
				t.Error("registry returned a different instance")
			}
		})
	}
}

func TestCreateFromConfigMissingAPIKey(t *testing.T) {
	for _, provider := range []config.LLMProvider{
		config.LLMProviderOpenAI,
		config.LLMProviderAnthropic,
		config.LLMProviderGemini,
	} {
		t.Run(string(provider), func(t *testing.T) {
			registry := NewToolformerRegistry()
			cfg := testLLMConfig(provider)
			cfg.APIKey = ""

			if _, err := registry.CreateFromConfig("default", cfg); err == nil {
				t.Fatal("expected error for missing API key")
			}
		})
	}
}

func TestCreateFromConfigOllamaWithoutKey(t *testing.T) {
	registry := NewToolformerRegistry()
	cfg := testLLMConfig(config.LLMProviderOllama)
	cfg.APIKey = ""

	if _, err := registry.CreateFromConfig("local", cfg); err != nil {
		t.Fatalf("ollama should not require an API key: %v", err)
	}
}

func TestCreateFromConfigDuplicateName(t *testing.T) {
	registry := NewToolformerRegistry()
	cfg := testLLMConfig(config.LLMProviderOllama)

	if _, err := registry.CreateFromConfig("default", cfg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := registry.CreateFromConfig("default", cfg); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestMaxToolIterations(t *testing.T) {
	cfg := &config.LLMConfig{}
	if got := maxToolIterations(cfg); got != 10 {
		t.Errorf("expected fallback of 10, got %d", got)
	}

	cfg.MaxToolIterations = 3
	if got := maxToolIterations(cfg); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}
