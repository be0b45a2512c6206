package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agora-protocol/agora-go/pkg/config"
	"github.com/agora-protocol/agora-go/pkg/httpclient"
	"github.com/agora-protocol/agora-go/pkg/observability"
	"github.com/agora-protocol/agora-go/pkg/schema"
)

const anthropicDefaultBaseURL = "https://api.anthropic.com"

// AnthropicToolformer opens conversations against the Anthropic
// messages API.
type AnthropicToolformer struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
	baseURL    string
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropicToolformer creates an Anthropic toolformer from configuration.
func NewAnthropicToolformer(cfg *config.LLMConfig) (*AnthropicToolformer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Anthropic")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &AnthropicToolformer{
		config:     cfg,
		httpClient: createHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
		baseURL:    baseURL,
	}, nil
}

func (p *AnthropicToolformer) ModelName() string {
	return p.config.Model
}

func (p *AnthropicToolformer) NewConversation(systemPrompt string, tools []*schema.Tool, category string) (Conversation, error) {
	toolSchemas := make([]anthropicTool, 0, len(tools))
	for _, tool := range tools {
		toolSchemas = append(toolSchemas, anthropicTool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.AsInputSchema(),
		})
	}

	return &anthropicConversation{
		provider:     p,
		category:     category,
		systemPrompt: systemPrompt,
		tools:        indexTools(tools),
		toolSchemas:  toolSchemas,
	}, nil
}

type anthropicConversation struct {
	provider     *AnthropicToolformer
	category     string
	systemPrompt string
	tools        map[string]*schema.Tool
	toolSchemas  []anthropicTool
	messages     []anthropicMessage
}

func (c *anthropicConversation) Send(ctx context.Context, message string) (string, error) {
	c.messages = append(c.messages, anthropicMessage{
		Role:    "user",
		Content: []anthropicContent{{Type: "text", Text: message}},
	})

	for iteration := 0; iteration < maxToolIterations(c.provider.config); iteration++ {
		response, err := c.provider.complete(ctx, c.systemPrompt, c.messages, c.toolSchemas, c.category)
		if err != nil {
			return "", err
		}

		c.messages = append(c.messages, anthropicMessage{
			Role:    "assistant",
			Content: response.Content,
		})

		if response.StopReason != "tool_use" {
			return collectText(response.Content), nil
		}

		results := make([]anthropicContent, 0, 1)
		for _, block := range response.Content {
			if block.Type != "tool_use" {
				continue
			}
			results = append(results, anthropicContent{
				Type:      "tool_result",
				ToolUseID: block.ID,
				Content:   dispatchTool(ctx, c.tools, block.Name, block.Input),
			})
		}
		if len(results) == 0 {
			return collectText(response.Content), nil
		}
		c.messages = append(c.messages, anthropicMessage{Role: "user", Content: results})
	}

	return "", fmt.Errorf("tool iteration limit reached without a textual reply")
}

func collectText(blocks []anthropicContent) string {
	var parts []string
	for _, block := range blocks {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "")
}

func (p *AnthropicToolformer) complete(ctx context.Context, system string, messages []anthropicMessage, tools []anthropicTool, category string) (*anthropicResponse, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("agora.llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "anthropic"),
			attribute.String("conversation.category", category),
		),
	)
	defer span.End()

	maxTokens := p.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	request := anthropicRequest{
		Model:       p.config.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperatureOrDefault(p.config),
		System:      system,
		Tools:       tools,
	}

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)
	metrics := observability.GetGlobalMetrics()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
		}
		return nil, err
	}

	if response.Error != nil {
		apiErr := fmt.Errorf("Anthropic API error: %s (type: %s)", response.Error.Message, response.Error.Type)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, apiErr)
		}
		return nil, apiErr
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.OutputTokens),
	)
	span.SetStatus(codes.Ok, "success")
	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, response.Usage.InputTokens, response.Usage.OutputTokens, nil)
	}

	return response, nil
}

func (p *AnthropicToolformer) makeRequest(ctx context.Context, request anthropicRequest) (*anthropicResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("HTTP request failed: no response received")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &response, nil
}
