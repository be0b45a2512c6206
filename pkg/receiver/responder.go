package receiver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agora-protocol/agora-go/pkg/llms"
	"github.com/agora-protocol/agora-go/pkg/schema"
)

const protocolResponderPrompt = "You are ProtocolResponderGPT. You will receive a query formatted according to a protocol document. " +
	"Use the tools at your disposal to produce the correct reply, formatted according to the same protocol document. " +
	"Reply with the response message only: no commentary, no explanations, no markdown formatting. " +
	"If the query is malformed and the protocol specifies how to handle that case, reply as the protocol specifies. " +
	"The protocol document follows.\n\n"

const naturalLanguageResponderPrompt = "You are NaturalLanguageResponderGPT. You will receive a natural language query. " +
	"Use the tools at your disposal to answer it. Reply with the answer only."

// Responder answers queries on the serving side. With a protocol
// document it follows the negotiated wire format; without one it falls
// back to natural language. A Responder holds one conversation, so a
// multiround protocol keeps its context across replies.
type Responder struct {
	conversation llms.Conversation
	logger       *slog.Logger
}

// NewResponder opens a responder conversation for a protocol document.
// Pass an empty document for natural language exchanges. The tools are
// attached to the conversation and invoked by the backend as needed.
func NewResponder(toolformer llms.Toolformer, protocolDocument string, tools []*schema.Tool) (*Responder, error) {
	prompt := naturalLanguageResponderPrompt
	if protocolDocument != "" {
		prompt = protocolResponderPrompt + protocolDocument
	}

	conversation, err := toolformer.NewConversation(prompt, tools, "conversation")
	if err != nil {
		return nil, fmt.Errorf("failed to open responder conversation: %w", err)
	}

	return &Responder{
		conversation: conversation,
		logger:       slog.Default().With("component", "responder"),
	}, nil
}

// Reply answers one query. For multiround protocols, call Reply
// repeatedly on the same Responder.
func (r *Responder) Reply(ctx context.Context, query string) (string, error) {
	reply, err := r.conversation.Send(ctx, query)
	if err != nil {
		return "", fmt.Errorf("responder failed: %w", err)
	}
	return reply, nil
}
