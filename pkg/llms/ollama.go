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

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaToolformer opens conversations against a local Ollama server.
type OllamaToolformer struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
	baseURL    string
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
	Tools    []interface{}   `json:"tools,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// NewOllamaToolformer creates an Ollama toolformer from configuration.
// No API key is needed for a local server.
func NewOllamaToolformer(cfg *config.LLMConfig) (*OllamaToolformer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OllamaToolformer{
		config:     cfg,
		httpClient: createHTTPClient(cfg, nil),
		baseURL:    baseURL,
	}, nil
}

func (p *OllamaToolformer) ModelName() string {
	return p.config.Model
}

func (p *OllamaToolformer) NewConversation(systemPrompt string, tools []*schema.Tool, category string) (Conversation, error) {
	messages := make([]ollamaMessage, 0, 8)
	if systemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}

	toolSchemas := make([]interface{}, 0, len(tools))
	for _, tool := range tools {
		toolSchemas = append(toolSchemas, tool.AsFunctionSchema())
	}

	return &ollamaConversation{
		provider:    p,
		category:    category,
		tools:       indexTools(tools),
		toolSchemas: toolSchemas,
		messages:    messages,
	}, nil
}

type ollamaConversation struct {
	provider    *OllamaToolformer
	category    string
	tools       map[string]*schema.Tool
	toolSchemas []interface{}
	messages    []ollamaMessage
}

func (c *ollamaConversation) Send(ctx context.Context, message string) (string, error) {
	c.messages = append(c.messages, ollamaMessage{Role: "user", Content: message})

	for iteration := 0; iteration < maxToolIterations(c.provider.config); iteration++ {
		response, err := c.provider.complete(ctx, c.messages, c.toolSchemas, c.category)
		if err != nil {
			return "", err
		}

		reply := response.Message
		c.messages = append(c.messages, reply)

		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		for _, call := range reply.ToolCalls {
			c.messages = append(c.messages, ollamaMessage{
				Role:     "tool",
				Content:  dispatchTool(ctx, c.tools, call.Function.Name, call.Function.Arguments),
				ToolName: call.Function.Name,
			})
		}
	}

	return "", fmt.Errorf("tool iteration limit reached without a textual reply")
}

func (p *OllamaToolformer) complete(ctx context.Context, messages []ollamaMessage, toolSchemas []interface{}, category string) (*ollamaResponse, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("agora.llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "ollama"),
			attribute.String("conversation.category", category),
		),
	)
	defer span.End()

	request := ollamaRequest{
		Model:    p.config.Model,
		Messages: messages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: temperatureOrDefault(p.config),
			NumPredict:  p.config.MaxTokens,
		},
		Tools: toolSchemas,
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

	if response.Error != "" {
		apiErr := fmt.Errorf("Ollama API error: %s", response.Error)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error)
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, apiErr)
		}
		return nil, apiErr
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.PromptEvalCount),
		attribute.Int(observability.AttrLLMTokensOutput, response.EvalCount),
	)
	span.SetStatus(codes.Ok, "success")
	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, response.PromptEvalCount, response.EvalCount, nil)
	}

	return response, nil
}

func (p *OllamaToolformer) makeRequest(ctx context.Context, request ollamaRequest) (*ollamaResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")

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

	var response ollamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &response, nil
}
