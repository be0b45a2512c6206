package receiver

import (
	"context"
	"strings"
	"testing"

	"github.com/agora-protocol/agora-go/pkg/schema"
)

func TestResponderUsesProtocolPrompt(t *testing.T) {
	toolformer := &cannedToolformer{conversation: &cannedConversation{reply: `{"y": 4}`}}

	tool := schema.NewTool("double", "Double a number", []schema.Parameter{
		schema.NewNumberParameter("x", "The number", true),
	}, nil)

	responder, err := NewResponder(toolformer, "Protocol body", []*schema.Tool{tool})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}

	if !strings.HasPrefix(toolformer.prompt, "You are ProtocolResponderGPT.") {
		t.Error("responder prompt missing")
	}
	if !strings.HasSuffix(toolformer.prompt, "Protocol body") {
		t.Error("prompt should end with the protocol document")
	}
	if len(toolformer.tools) != 1 {
		t.Errorf("tools attached = %d, want 1", len(toolformer.tools))
	}
	if toolformer.category != "conversation" {
		t.Errorf("category = %q, want conversation", toolformer.category)
	}

	reply, err := responder.Reply(context.Background(), `{"x": 2}`)
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply != `{"y": 4}` {
		t.Errorf("Reply() = %q", reply)
	}
}

func TestResponderNaturalLanguageFallback(t *testing.T) {
	toolformer := &cannedToolformer{conversation: &cannedConversation{reply: "It is sunny."}}

	if _, err := NewResponder(toolformer, "", nil); err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	if !strings.HasPrefix(toolformer.prompt, "You are NaturalLanguageResponderGPT.") {
		t.Error("natural language prompt missing")
	}
}
