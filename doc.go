// Package agora lets two LLM-driven agents negotiate an ad hoc wire
// protocol for a recurring task and then synthesize an executable adapter
// for it, so later exchanges skip natural language entirely.
//
// # How it works
//
// A sender holds a machine-readable task schema and a way to reach the
// counterparty. Its negotiator talks the counterparty into a written
// protocol document:
//
//	negotiator := sender.NewNegotiator(toolformer, nil)
//	result, err := negotiator.NegotiateProtocolForTask(ctx, task, callback, "")
//
// Negotiation either extracts a final protocol or exhausts its round
// budget; both are normal outcomes. Once a protocol exists, the
// programmer turns it into code:
//
//	programmer := sender.NewProgrammer(toolformer, nil)
//	impl, err := programmer.WriteImplementation(ctx, task, result.Protocol.Document())
//
// On the other side, a receiver checks whether a proposed protocol is
// implementable with the tools it has, and answers protocol-formatted
// queries:
//
//	checker := receiver.NewChecker(toolformer)
//	ok, err := checker.Check(ctx, document, tools)
//
// # Backends
//
// Reasoning runs through the llms package, which speaks to OpenAI,
// Anthropic, Gemini and Ollama over their native HTTP APIs. Tools are
// described once with the schema package and rendered into whichever
// wire shape the backend wants; external tools can be discovered from
// MCP servers via the mcptools package.
//
// # CLI
//
// The agora command exposes the receiver-side feasibility check plus
// configuration tooling:
//
//	agora check protocol.txt --config config.yaml
//	agora validate config.yaml
//	agora schema > config.schema.json
package agora
