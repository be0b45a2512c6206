// Package llms provides the conversational LLM backends that drive
// protocol negotiation, feasibility checking and adapter synthesis.
//
// A Toolformer opens stateful Conversations. Each conversation owns its
// message history and, when tools are attached, runs an internal tool
// loop: backend tool calls are dispatched to the registered handlers and
// their results fed back until the model produces plain text.
package llms

import (
	"context"
	"fmt"

	"github.com/agora-protocol/agora-go/pkg/config"
	"github.com/agora-protocol/agora-go/pkg/registry"
	"github.com/agora-protocol/agora-go/pkg/schema"
)

// Toolformer opens conversations against a concrete LLM backend.
type Toolformer interface {
	// NewConversation starts a fresh conversation seeded with a system
	// prompt. The tools become callable by the model for the lifetime of
	// the conversation. Category tags the conversation for observability
	// ("negotiation", "programming", "protocolChecking", "conversation").
	NewConversation(systemPrompt string, tools []*schema.Tool, category string) (Conversation, error)

	// ModelName reports the backend model identifier.
	ModelName() string
}

// Conversation is a stateful message exchange with an LLM. Send appends
// the message to the history, runs any tool calls the model requests,
// and returns the model's final textual reply.
//
// Conversations are sequential: callers must not invoke Send
// concurrently on the same conversation.
type Conversation interface {
	Send(ctx context.Context, message string) (string, error)
}

// ToolformerRegistry manages named toolformer instances.
type ToolformerRegistry struct {
	registry.BaseRegistry[Toolformer]
}

// NewToolformerRegistry creates an empty toolformer registry.
func NewToolformerRegistry() *ToolformerRegistry {
	return &ToolformerRegistry{
		BaseRegistry: *registry.NewBaseRegistry[Toolformer](),
	}
}

// CreateFromConfig instantiates and registers a toolformer for the given
// provider configuration.
func (r *ToolformerRegistry) CreateFromConfig(name string, cfg *config.LLMConfig) (Toolformer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is required")
	}

	var (
		tf  Toolformer
		err error
	)

	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		tf, err = NewOpenAIToolformer(cfg)
	case config.LLMProviderAnthropic:
		tf, err = NewAnthropicToolformer(cfg)
	case config.LLMProviderGemini:
		tf, err = NewGeminiToolformer(cfg)
	case config.LLMProviderOllama:
		tf, err = NewOllamaToolformer(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s toolformer: %w", cfg.Provider, err)
	}

	if err := r.Register(name, tf); err != nil {
		return nil, err
	}
	return tf, nil
}

// maxToolIterations resolves the configured tool-loop bound.
func maxToolIterations(cfg *config.LLMConfig) int {
	if cfg.MaxToolIterations > 0 {
		return cfg.MaxToolIterations
	}
	return 10
}

// indexTools builds a name lookup for dispatching tool calls.
func indexTools(tools []*schema.Tool) map[string]*schema.Tool {
	index := make(map[string]*schema.Tool, len(tools))
	for _, tool := range tools {
		index[tool.Name()] = tool
	}
	return index
}
