package sender

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agora-protocol/agora-go/pkg/config"
)

const implementationReply = "Here is my implementation:\n" +
	"<IMPLEMENTATION>\n" +
	"```python\n" +
	"import json\n" +
	"\n" +
	"def send_query(task_data):\n" +
	"    response = send_to_server(json.dumps({\"x\": task_data[\"x\"]}))\n" +
	"    return json.loads(response)\n" +
	"```\n" +
	"</IMPLEMENTATION>"

func TestProgrammerFirstAttemptSuccess(t *testing.T) {
	conversation := &scriptedConversation{replies: []string{implementationReply}}
	toolformer := &scriptedToolformer{conversations: []*scriptedConversation{conversation}}

	programmer := NewProgrammer(toolformer, &config.ProgrammerConfig{MaxAttempts: 5})
	source, err := programmer.WriteImplementation(context.Background(), doubleItTaskSchema(t), "Protocol body")
	if err != nil {
		t.Fatalf("WriteImplementation() error = %v", err)
	}

	if !strings.Contains(source, "def run(task_data):") {
		t.Errorf("adapter missing canonical entry point:\n%s", source)
	}
	if strings.Contains(source, "def send_query(") {
		t.Error("adapter still contains the generated entry point name")
	}
	if strings.Contains(source, "```") {
		t.Errorf("adapter contains residual fence markers:\n%s", source)
	}

	// No corrective nudge on a first-attempt success.
	if len(conversation.received) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(conversation.received))
	}
	first := conversation.received[0]
	if !strings.HasPrefix(first, "JSON schema:\n\n") {
		t.Errorf("first message = %q, want JSON schema preamble", first)
	}
	if !strings.Contains(first, "Protocol document:\n\nProtocol body") {
		t.Error("first message missing protocol document")
	}
	if toolformer.categories[0] != "programming" {
		t.Errorf("conversation category = %q, want programming", toolformer.categories[0])
	}
}

func TestProgrammerNudgesThenSucceeds(t *testing.T) {
	conversation := &scriptedConversation{replies: []string{
		"Let me think about the parsing first.",
		implementationReply,
	}}
	toolformer := &scriptedToolformer{conversations: []*scriptedConversation{conversation}}

	programmer := NewProgrammer(toolformer, &config.ProgrammerConfig{MaxAttempts: 5})
	source, err := programmer.WriteImplementation(context.Background(), doubleItTaskSchema(t), "Protocol body")
	if err != nil {
		t.Fatalf("WriteImplementation() error = %v", err)
	}
	if !strings.Contains(source, "def run(") {
		t.Error("adapter missing canonical entry point")
	}

	if len(conversation.received) != 2 {
		t.Fatalf("messages sent = %d, want 2", len(conversation.received))
	}
	if conversation.received[1] != implementationNudge {
		t.Errorf("second message = %q, want the corrective nudge", conversation.received[1])
	}
}

func TestProgrammerExhaustionIsImplementationNotFound(t *testing.T) {
	replies := make([]string, 3)
	for i := range replies {
		replies[i] = "Still thinking, no code yet."
	}
	conversation := &scriptedConversation{replies: replies}
	toolformer := &scriptedToolformer{conversations: []*scriptedConversation{conversation}}

	programmer := NewProgrammer(toolformer, &config.ProgrammerConfig{MaxAttempts: 3})
	_, err := programmer.WriteImplementation(context.Background(), doubleItTaskSchema(t), "Protocol body")
	if err == nil {
		t.Fatal("WriteImplementation() error = nil, want ImplementationNotFoundError")
	}

	var notFound *ImplementationNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *ImplementationNotFoundError", err)
	}
	if notFound.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", notFound.Attempts)
	}
	if len(conversation.received) != 3 {
		t.Errorf("messages sent = %d, want 3", len(conversation.received))
	}
}

func TestAdaptImplementation(t *testing.T) {
	in := "```python\ndef send_query(task_data):\n    return {}\n```"
	got := adaptImplementation(in)
	want := "def run(task_data):\n    return {}"
	if got != want {
		t.Errorf("adaptImplementation() = %q, want %q", got, want)
	}
}
