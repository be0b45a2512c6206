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

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIToolformer opens conversations against the OpenAI chat
// completions API. Also serves OpenAI-compatible endpoints via BaseURL.
type OpenAIToolformer struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
	baseURL    string
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Tools       []interface{}   `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIToolformer creates an OpenAI toolformer from configuration.
func NewOpenAIToolformer(cfg *config.LLMConfig) (*OpenAIToolformer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OpenAIToolformer{
		config:     cfg,
		httpClient: createHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
		baseURL:    baseURL,
	}, nil
}

func (p *OpenAIToolformer) ModelName() string {
	return p.config.Model
}

func (p *OpenAIToolformer) NewConversation(systemPrompt string, tools []*schema.Tool, category string) (Conversation, error) {
	messages := make([]openAIMessage, 0, 8)
	if systemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: systemPrompt})
	}

	toolSchemas := make([]interface{}, 0, len(tools))
	for _, tool := range tools {
		toolSchemas = append(toolSchemas, tool.AsFunctionSchema())
	}

	return &openAIConversation{
		provider:    p,
		category:    category,
		tools:       indexTools(tools),
		toolSchemas: toolSchemas,
		messages:    messages,
	}, nil
}

type openAIConversation struct {
	provider    *OpenAIToolformer
	category    string
	tools       map[string]*schema.Tool
	toolSchemas []interface{}
	messages    []openAIMessage
}

func (c *openAIConversation) Send(ctx context.Context, message string) (string, error) {
	c.messages = append(c.messages, openAIMessage{Role: "user", Content: message})

	for iteration := 0; iteration < maxToolIterations(c.provider.config); iteration++ {
		response, err := c.provider.complete(ctx, c.messages, c.toolSchemas, c.category)
		if err != nil {
			return "", err
		}

		if len(response.Choices) == 0 {
			return "", fmt.Errorf("OpenAI returned no choices")
		}

		reply := response.Choices[0].Message
		c.messages = append(c.messages, reply)

		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		for _, call := range reply.ToolCalls {
			var args map[string]interface{}
			content := ""
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				content = "Tool call failed: invalid arguments: " + err.Error()
			} else {
				content = dispatchTool(ctx, c.tools, call.Function.Name, args)
			}
			c.messages = append(c.messages, openAIMessage{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("tool iteration limit reached without a textual reply")
}

func (p *OpenAIToolformer) complete(ctx context.Context, messages []openAIMessage, toolSchemas []interface{}, category string) (*openAIResponse, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("agora.llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "openai"),
			attribute.String("conversation.category", category),
		),
	)
	defer span.End()

	request := openAIRequest{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: temperatureOrDefault(p.config),
		Tools:       toolSchemas,
	}
	if p.config.MaxTokens > 0 {
		maxTokens := p.config.MaxTokens
		request.MaxTokens = &maxTokens
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
		apiErr := fmt.Errorf("OpenAI API error: %s (type: %s, code: %s)",
			response.Error.Message, response.Error.Type, response.Error.Code)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, apiErr)
		}
		return nil, apiErr
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "success")
	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	}

	return response, nil
}

func (p *OpenAIToolformer) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

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

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &response, nil
}
