package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agora-protocol/agora-go/pkg/config"
	"github.com/agora-protocol/agora-go/pkg/extract"
	"github.com/agora-protocol/agora-go/pkg/llms"
	"github.com/agora-protocol/agora-go/pkg/observability"
	"github.com/agora-protocol/agora-go/pkg/schema"
)

const taskProgrammerPrompt = `
You are ProtocolProgrammerGPT. You will act as an intermediate between a machine (that has a certain input and output schema in JSON) ` +
	`and a remote server that can perform a task following a certain protocol. Your task is to write a routine that takes some task data ` +
	`(which follows the input schema), sends query in a format defined by the protocol, parses it and returns the output according to the output schema so that ` +
	`the machine can use it.
The routine is a Python file that contains a function "send_query". send_query takes a single argument, "task_data", which is a dictionary, and must return ` +
	`a dictionary, which is the response to the query formatted according to the output schema.
In order to communicate with the remote server, you can use the function "send_to_server" that is already available in the environment.
send_to_server takes a single argument, "query" (which is a string formatted according to the protocol), and returns a string (again formatted according ` +
	`to the protocol). Do not worry about managing communication, everything is already set up for you. Just focus on preparing the right query.

Rules:
- The implementation must be written in Python.
- You can define any number of helper functions and import any libraries that are part of the Python standard library.
- Do not import libraries that are not part of the Python standard library.
- send_to_server will be already available in the environment. There is no need to import it.
- Your task is to prepare the query, send it and parse the response.
- Remember to import standard libraries if you need them.
- If there is an unexpected error that is not covered by the protocol, throw an exception.` +
	` If instead the protocol specifies how to handle the error, return the response according to the protocol's specification.
- Do not execute anything (aside from library imports) when the file itself is loaded. I will personally import the file and call the send_query function with the task data.
Begin by thinking about the implementation and how you would structure the code. ` +
	`Then, write your implementation by writing a code block that contains the tags <IMPLEMENTATION> and </IMPLEMENTATION>. For example:
` + "```python" + `
<IMPLEMENTATION>

def send_query(task_data):
  ...

</IMPLEMENTATION>
`

const implementationNudge = "You have not provided an implementation yet. Please provide one by surrounding it in the tags <IMPLEMENTATION> and </IMPLEMENTATION>."

// canonicalEntryPoint is the function name the adapter execution
// contract expects. The generated source names it send_query; the
// rename happens as a textual substitution of the declaration.
const (
	generatedEntryPoint = "def send_query("
	canonicalEntryPoint = "def run("
)

// ImplementationNotFoundError reports that the attempt bound was
// exhausted without an extractable implementation block.
type ImplementationNotFoundError struct {
	Attempts int
}

func (e *ImplementationNotFoundError) Error() string {
	return fmt.Sprintf("no implementation produced within %d attempts", e.Attempts)
}

// Programmer synthesizes an executable adapter for a finalized protocol.
// The adapter exposes a single "run" entry point that accepts task data
// and returns response data, talking to the remote side through an
// ambient send_to_server capability.
type Programmer struct {
	toolformer     llms.Toolformer
	maxAttempts    int
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewProgrammer creates a programmer bound to a reasoning backend. A
// negative cfg.AttemptTimeout disables the per-attempt timeout.
func NewProgrammer(toolformer llms.Toolformer, cfg *config.ProgrammerConfig) *Programmer {
	maxAttempts := 5
	attemptTimeout := 300 * time.Second
	if cfg != nil {
		if cfg.MaxAttempts > 0 {
			maxAttempts = cfg.MaxAttempts
		}
		if cfg.AttemptTimeout > 0 {
			attemptTimeout = time.Duration(cfg.AttemptTimeout) * time.Second
		} else if cfg.AttemptTimeout < 0 {
			attemptTimeout = 0
		}
	}
	return &Programmer{
		toolformer:     toolformer,
		maxAttempts:    maxAttempts,
		attemptTimeout: attemptTimeout,
		logger:         slog.Default().With("component", "programmer"),
	}
}

// MaxAttempts reports the configured attempt bound.
func (p *Programmer) MaxAttempts() int { return p.maxAttempts }

// WriteImplementation synthesizes adapter source for the task schema and
// protocol document. It returns *ImplementationNotFoundError when no
// attempt yields an extractable implementation.
func (p *Programmer) WriteImplementation(ctx context.Context, taskSchema *schema.TaskSchema, protocolDocument string) (string, error) {
	if taskSchema == nil {
		return "", fmt.Errorf("task schema is required")
	}

	tracer := observability.GetTracer("agora.sender")
	ctx, span := tracer.Start(ctx, observability.SpanSynthesis,
		trace.WithAttributes(attribute.Int("synthesis.max_attempts", p.maxAttempts)),
	)
	defer span.End()

	conversation, err := p.toolformer.NewConversation(taskProgrammerPrompt, nil, "programming")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to open programming conversation: %w", err)
	}

	message := "JSON schema:\n\n" + taskSchema.JSON() + "\n\n" + "Protocol document:\n\n" + protocolDocument

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		reply, err := p.runAttempt(ctx, conversation, message, attempt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}

		implementation, found := extract.FindBlock(reply, extract.ImplementationOpenTag, extract.ImplementationCloseTag)
		if found {
			adapted := adaptImplementation(implementation)
			span.SetAttributes(attribute.Int(observability.AttrAttempt, attempt+1))
			span.SetStatus(codes.Ok, "synthesized")
			p.logger.Info("implementation synthesized", "attempts", attempt+1)
			return adapted, nil
		}

		message = implementationNudge
	}

	notFound := &ImplementationNotFoundError{Attempts: p.maxAttempts}
	span.RecordError(notFound)
	span.SetStatus(codes.Error, notFound.Error())
	p.logger.Warn("synthesis exhausted", "attempts", p.maxAttempts)
	return "", notFound
}

func (p *Programmer) runAttempt(ctx context.Context, conversation llms.Conversation, message string, attempt int) (string, error) {
	attemptCtx := ctx
	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()
	}

	reply, err := conversation.Send(attemptCtx, message)
	if err != nil {
		return "", fmt.Errorf("synthesis attempt %d failed: %w", attempt, err)
	}
	return reply, nil
}

// adaptImplementation cleans up the extracted source and renames the
// generated entry point to the canonical one.
func adaptImplementation(implementation string) string {
	implementation = extract.StripCodeFences(strings.TrimSpace(implementation))
	return strings.ReplaceAll(implementation, generatedEntryPoint, canonicalEntryPoint)
}
