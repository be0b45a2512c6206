package llms

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agora-protocol/agora-go/pkg/config"
	"github.com/agora-protocol/agora-go/pkg/httpclient"
	"github.com/agora-protocol/agora-go/pkg/observability"
	"github.com/agora-protocol/agora-go/pkg/schema"
)

func createHTTPClient(cfg *config.LLMConfig, parser httpclient.RateLimitHeaderParser) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay) * time.Second),
	}
	if parser != nil {
		opts = append(opts, httpclient.WithHeaderParser(parser))
	}
	return httpclient.New(opts...)
}

func temperatureOrDefault(cfg *config.LLMConfig) float64 {
	if cfg.Temperature != nil {
		return *cfg.Temperature
	}
	return 0.2
}

// dispatchTool runs a tool call requested by the backend. The result is
// always textual: handler failures come back as diagnostic text so the
// model can react to them instead of the conversation aborting.
func dispatchTool(ctx context.Context, tools map[string]*schema.Tool, name string, args map[string]interface{}) string {
	tool, ok := tools[name]
	if !ok {
		return "Tool call failed: unknown tool: " + name
	}

	tracer := observability.GetTracer("agora.llms")
	ctx, span := tracer.Start(ctx, observability.SpanToolInvocation,
		trace.WithAttributes(attribute.String(observability.AttrToolName, name)),
	)
	defer span.End()

	start := time.Now()
	result := tool.Invoke(ctx, args)
	duration := time.Since(start)

	metrics := observability.GetGlobalMetrics()
	if result.Success {
		span.SetStatus(codes.Ok, "success")
		if metrics != nil {
			metrics.RecordToolInvocation(ctx, name, duration, nil)
		}
	} else {
		span.SetStatus(codes.Error, result.Error)
		if metrics != nil {
			metrics.RecordToolInvocation(ctx, name, duration, &toolInvocationError{name: name, message: result.Error})
		}
	}

	return result.Content()
}

type toolInvocationError struct {
	name    string
	message string
}

func (e *toolInvocationError) Error() string {
	return "tool " + e.name + " failed: " + e.message
}
