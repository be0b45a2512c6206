// Package sender implements the querying side of a negotiation: the
// negotiator that agrees on a protocol with a remote counterparty, the
// programmer that synthesizes an adapter for an agreed protocol, and the
// memory that tracks which protocols fit which tasks.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agora-protocol/agora-go/pkg/config"
	"github.com/agora-protocol/agora-go/pkg/extract"
	"github.com/agora-protocol/agora-go/pkg/llms"
	"github.com/agora-protocol/agora-go/pkg/observability"
	"github.com/agora-protocol/agora-go/pkg/protocol"
	"github.com/agora-protocol/agora-go/pkg/schema"
	"github.com/agora-protocol/agora-go/pkg/utils"
)

const negotiationRules = `
Here are some rules (that should also be explained to the other GPT):
- You can assume that the protocol has a sender and a receiver. Do not worry about how the messages will be delivered, focus only on the content of the messages.
- Keep the protocol short and simple. It should be easy to understand and implement.
- The protocol must specify the exact format of what is sent and received. Do not leave it open to interpretation.
- The implementation will be written by a programmer that does not have access to the negotiation process, so make sure the protocol is clear and unambiguous.
- The implementation will receive a string and return a string, so structure your protocol accordingly.
- The other party might have a different internal data schema or set of tools, so make sure that the protocol is flexible enough to accommodate that.
- There will only be one message sent by the sender and one message sent by the receiver. Design the protocol accordingly.
- Keep the negotiation short: no need to repeat the same things over and over.
- If the other party has proposed a protocol and you're good with it, there's no reason to keep negotiating or to repeat the protocol to the other party.
- Do not restate parts of the protocols that have already been agreed upon.
And remember: keep the protocol as simple and unequivocal as necessary. The programmer that will implement the protocol can code, but they are not a mind reader.
`

const taskNegotiatorPrompt = `
You are ProtocolNegotiatorGPT. Your task is to negotiate a protocol that can be used to query a service.
You will receive a JSON schema of the task that the service must perform. Negotiate with the service to determine a protocol that can be used to query it.
To do so, you will chat with another GPT (role: user) that will negotiate on behalf of the service.
` + negotiationRules + `
Once you are ready to save the protocol, reply wrapping the final version of the protocol, as agreed in your negotiation, between the tags <FINALPROTOCOL> and </FINALPROTOCOL>.
Within the body of the tag, before everything else, add a section (between ---) that contains the name, the description of the protocol, and whether the protocol requires multiple rounds of communication. For instance:
<FINALPROTOCOL>
---
name: MyProtocol
description: This protocol is for...
multiround: false
---

Body of the protocol...

</FINALPROTOCOL>
`

const openingMessage = "Hello! How may I help you?"

const counterpartyErrorPrefix = "Error interacting with the other party: "

// Callback delivers one negotiation message to the counterparty and
// returns its reply. A returned error is a soft failure: it is reported
// back into the negotiation conversation rather than aborting the run.
type Callback func(ctx context.Context, message string) (string, error)

// Outcome is the terminal state of a negotiation run.
type Outcome int

const (
	// OutcomeExtracted means a final protocol was agreed and extracted.
	OutcomeExtracted Outcome = iota
	// OutcomeExhausted means the round bound was reached without a final
	// protocol. This is a valid negotiation result, not an error.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExtracted:
		return "extracted"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result is what a finished negotiation produced. Protocol is non-nil
// exactly when Outcome is OutcomeExtracted.
type Result struct {
	Outcome  Outcome
	Protocol *protocol.Protocol
	Rounds   int
}

// Negotiator drives protocol negotiation for a task against a remote
// counterparty. Each run owns its conversation and round counter, so
// independent negotiations may run concurrently.
type Negotiator struct {
	toolformer   llms.Toolformer
	maxRounds    int
	roundTimeout time.Duration
	logger       *slog.Logger
}

// NewNegotiator creates a negotiator bound to a reasoning backend. A
// negative cfg.RoundTimeout disables the per-turn timeout.
func NewNegotiator(toolformer llms.Toolformer, cfg *config.NegotiationConfig) *Negotiator {
	maxRounds := 10
	roundTimeout := 300 * time.Second
	if cfg != nil {
		if cfg.MaxRounds > 0 {
			maxRounds = cfg.MaxRounds
		}
		if cfg.RoundTimeout > 0 {
			roundTimeout = time.Duration(cfg.RoundTimeout) * time.Second
		} else if cfg.RoundTimeout < 0 {
			roundTimeout = 0
		}
	}
	return &Negotiator{
		toolformer:   toolformer,
		maxRounds:    maxRounds,
		roundTimeout: roundTimeout,
		logger:       slog.Default().With("component", "negotiator"),
	}
}

// MaxRounds reports the configured round bound.
func (n *Negotiator) MaxRounds() int { return n.maxRounds }

// NegotiateProtocolForTask negotiates a protocol for the given task.
// The otherParty callback carries each non-final message to the
// counterparty. Optional additionalInfo is appended to the opening
// prompt. The returned Result reports whether a protocol was extracted
// or the round bound was exhausted; only backend failures surface as
// errors.
func (n *Negotiator) NegotiateProtocolForTask(ctx context.Context, taskSchema *schema.TaskSchema, otherParty Callback, additionalInfo string) (*Result, error) {
	if taskSchema == nil {
		return nil, fmt.Errorf("task schema is required")
	}
	if otherParty == nil {
		return nil, fmt.Errorf("counterparty callback is required")
	}

	sessionID := uuid.NewString()
	tracer := observability.GetTracer("agora.sender")
	ctx, span := tracer.Start(ctx, observability.SpanNegotiation,
		trace.WithAttributes(
			attribute.String("negotiation.session_id", sessionID),
			attribute.Int("negotiation.max_rounds", n.maxRounds),
		),
	)
	defer span.End()

	prompt := taskNegotiatorPrompt + "\nThe JSON schema of the task is the following:\n\n" + taskSchema.String()
	if additionalInfo != "" {
		prompt += "\n\n" + additionalInfo
	}

	conversation, err := n.toolformer.NewConversation(prompt, nil, "negotiation")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open negotiation conversation: %w", err)
	}

	n.logger.Info("negotiation started",
		"session_id", sessionID,
		"max_rounds", n.maxRounds,
		"prompt_tokens_estimate", utils.EstimateTokens(prompt))

	otherMessage := openingMessage

	for round := 0; round < n.maxRounds; round++ {
		message, err := n.runRound(ctx, conversation, otherMessage, round)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		block, found := extract.FindBlock(message, extract.ProtocolOpenTag, extract.ProtocolCloseTag)
		if found {
			meta := extract.ParseMetadata(block)
			proto := protocol.New(block, meta)

			rounds := round + 1
			span.SetAttributes(
				attribute.String(observability.AttrProtocolName, proto.Name()),
				attribute.Int(observability.AttrRound, rounds),
			)
			span.SetStatus(codes.Ok, "extracted")
			n.recordNegotiation(ctx, rounds, true)
			n.logger.Info("protocol extracted",
				"session_id", sessionID,
				"protocol", proto.Name(),
				"rounds", rounds)

			return &Result{Outcome: OutcomeExtracted, Protocol: proto, Rounds: rounds}, nil
		}

		reply, err := otherParty(ctx, message)
		if err != nil {
			// Soft failure: report it back into the conversation and let
			// the backend renegotiate.
			n.logger.Warn("counterparty error",
				"session_id", sessionID,
				"round", round,
				"error", err)
			otherMessage = counterpartyErrorPrefix + err.Error()
		} else {
			otherMessage = reply
		}
	}

	span.SetAttributes(attribute.Int(observability.AttrRound, n.maxRounds))
	span.SetStatus(codes.Ok, "exhausted")
	n.recordNegotiation(ctx, n.maxRounds, false)
	n.logger.Info("negotiation exhausted",
		"session_id", sessionID,
		"rounds", n.maxRounds)

	return &Result{Outcome: OutcomeExhausted, Rounds: n.maxRounds}, nil
}

func (n *Negotiator) runRound(ctx context.Context, conversation llms.Conversation, outgoing string, round int) (string, error) {
	tracer := observability.GetTracer("agora.sender")
	roundCtx, span := tracer.Start(ctx, observability.SpanNegotiationRound,
		trace.WithAttributes(attribute.Int(observability.AttrRound, round)),
	)
	defer span.End()

	if n.roundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(roundCtx, n.roundTimeout)
		defer cancel()
	}

	message, err := conversation.Send(roundCtx, outgoing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("negotiation round %d failed: %w", round, err)
	}
	span.SetStatus(codes.Ok, "success")
	return message, nil
}

func (n *Negotiator) recordNegotiation(ctx context.Context, rounds int, extracted bool) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordNegotiation(ctx, rounds, extracted)
	}
}
