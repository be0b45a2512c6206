// Package receiver implements the serving side: the feasibility checker
// that judges whether a protocol can be implemented with the available
// tools, and the responder that answers protocol queries.
package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agora-protocol/agora-go/pkg/llms"
	"github.com/agora-protocol/agora-go/pkg/observability"
	"github.com/agora-protocol/agora-go/pkg/schema"
)

const checkerToolPrompt = "You are ProtocolCheckerGPT. Your task is to look at the provided protocol and determine if you have access " +
	"to the tools required to implement it. A protocol is sufficiently expressive if an implementer could write code that, given a query formatted according to the protocol and the tools " +
	"at your disposal, can parse the query according to the protocol's specification and send a reply. Think about it and at the end of the reply write \"YES\" if the" +
	"protocol is adequate or \"NO\". Do not attempt to implement the protocol or call the tools: that will be done by the implementer."

// verdictWindow is how many trailing characters of the reply are trusted
// to carry the verdict. The prompt asks for a bare YES/NO at the end, so
// "yes" appearing earlier in reasoning text is ignored.
const verdictWindow = 10

// Checker judges whether a protocol is implementable with a given tool
// set, before the protocol is put into production. The check is
// idempotent and safe to repeat.
type Checker struct {
	toolformer llms.Toolformer
	logger     *slog.Logger
}

// NewChecker creates a checker bound to a reasoning backend.
func NewChecker(toolformer llms.Toolformer) *Checker {
	return &Checker{
		toolformer: toolformer,
		logger:     slog.Default().With("component", "checker"),
	}
}

// Check runs one capability query for the protocol document against the
// tool set. No tools are attached to the conversation itself; the tools
// appear only as documentation in the message body. A backend failure
// propagates as an error, not as a negative verdict.
func (c *Checker) Check(ctx context.Context, protocolDocument string, tools []*schema.Tool) (bool, error) {
	tracer := observability.GetTracer("agora.receiver")
	ctx, span := tracer.Start(ctx, observability.SpanFeasibilityCheck,
		trace.WithAttributes(attribute.Int("check.tool_count", len(tools))),
	)
	defer span.End()

	message := "Protocol document:\n\n" + protocolDocument + "\n\n" + "Functions that the implementer will have access to:\n\n"
	if len(tools) == 0 {
		message += "No additional functions provided"
	} else {
		for _, tool := range tools {
			message += tool.AsDocumented() + "\n\n"
		}
	}

	conversation, err := c.toolformer.NewConversation(checkerToolPrompt, nil, "protocolChecking")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to open checker conversation: %w", err)
	}

	reply, err := conversation.Send(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("feasibility check failed: %w", err)
	}

	adequate := ParseVerdict(reply)
	span.SetAttributes(attribute.Bool("check.adequate", adequate))
	span.SetStatus(codes.Ok, "success")
	c.logger.Info("feasibility check complete", "adequate", adequate)

	return adequate, nil
}

// ParseVerdict applies the suffix-window decision rule: true if and only
// if the case-insensitive substring "yes" appears within the last 10
// characters of the trimmed reply.
func ParseVerdict(reply string) bool {
	trimmed := []rune(strings.TrimSpace(strings.ToLower(reply)))
	if len(trimmed) > verdictWindow {
		trimmed = trimmed[len(trimmed)-verdictWindow:]
	}
	return strings.Contains(string(trimmed), "yes")
}
