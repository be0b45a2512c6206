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

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiToolformer opens conversations against the Gemini
// generateContent API.
type GeminiToolformer struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
	baseURL    string
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []geminiToolSet         `json:"tools,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is a loose part object: text, functionCall or
// functionResponse keyed maps.
type geminiPart map[string]interface{}

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	Error         *geminiError         `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// NewGeminiToolformer creates a Gemini toolformer from configuration.
func NewGeminiToolformer(cfg *config.LLMConfig) (*GeminiToolformer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &GeminiToolformer{
		config:     cfg,
		httpClient: createHTTPClient(cfg, nil),
		baseURL:    baseURL,
	}, nil
}

func (p *GeminiToolformer) ModelName() string {
	return p.config.Model
}

func (p *GeminiToolformer) NewConversation(systemPrompt string, tools []*schema.Tool, category string) (Conversation, error) {
	declarations := make([]geminiFunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, geminiFunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.AsInputSchema(),
		})
	}

	// Gemini has no system role; the system prompt rides as the opening
	// user content.
	var contents []geminiContent
	if systemPrompt != "" {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{"text": systemPrompt}},
		})
	}

	return &geminiConversation{
		provider:     p,
		category:     category,
		tools:        indexTools(tools),
		declarations: declarations,
		contents:     contents,
	}, nil
}

type geminiConversation struct {
	provider     *GeminiToolformer
	category     string
	tools        map[string]*schema.Tool
	declarations []geminiFunctionDeclaration
	contents     []geminiContent
}

func (c *geminiConversation) Send(ctx context.Context, message string) (string, error) {
	c.contents = append(c.contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{"text": message}},
	})

	for iteration := 0; iteration < maxToolIterations(c.provider.config); iteration++ {
		response, err := c.provider.complete(ctx, c.contents, c.declarations, c.category)
		if err != nil {
			return "", err
		}

		if len(response.Candidates) == 0 {
			return "", fmt.Errorf("Gemini returned no candidates")
		}

		candidate := response.Candidates[0].Content
		candidate.Role = "model"
		c.contents = append(c.contents, candidate)

		var textParts []string
		var results []geminiPart
		for _, part := range candidate.Parts {
			if text, ok := part["text"].(string); ok {
				textParts = append(textParts, text)
			}
			call, ok := part["functionCall"].(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := call["name"].(string)
			args, _ := call["args"].(map[string]interface{})
			results = append(results, geminiPart{
				"functionResponse": map[string]interface{}{
					"name": name,
					"response": map[string]interface{}{
						"content": dispatchTool(ctx, c.tools, name, args),
					},
				},
			})
		}

		if len(results) == 0 {
			return strings.Join(textParts, ""), nil
		}
		c.contents = append(c.contents, geminiContent{Role: "user", Parts: results})
	}

	return "", fmt.Errorf("tool iteration limit reached without a textual reply")
}

func (p *GeminiToolformer) complete(ctx context.Context, contents []geminiContent, declarations []geminiFunctionDeclaration, category string) (*geminiResponse, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("agora.llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "gemini"),
			attribute.String("conversation.category", category),
		),
	)
	defer span.End()

	generationConfig := &geminiGenerationConfig{
		MaxOutputTokens: p.config.MaxTokens,
	}
	if p.config.Temperature != nil && *p.config.Temperature > 0 {
		temp := *p.config.Temperature
		generationConfig.Temperature = &temp
	}

	request := geminiRequest{
		Contents:         contents,
		GenerationConfig: generationConfig,
	}
	if len(declarations) > 0 {
		request.Tools = []geminiToolSet{{FunctionDeclarations: declarations}}
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
		apiErr := fmt.Errorf("Gemini API error: %s (status: %s)", response.Error.Message, response.Error.Status)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		if metrics != nil {
			metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, apiErr)
		}
		return nil, apiErr
	}

	inputTokens, outputTokens := 0, 0
	if response.UsageMetadata != nil {
		inputTokens = response.UsageMetadata.PromptTokenCount
		outputTokens = response.UsageMetadata.CandidatesTokenCount
	}
	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, inputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, outputTokens),
	)
	span.SetStatus(codes.Ok, "success")
	if metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, inputTokens, outputTokens, nil)
	}

	return response, nil
}

func (p *GeminiToolformer) makeRequest(ctx context.Context, request geminiRequest) (*geminiResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, p.config.Model, p.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestBody))
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

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &response, nil
}
