package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Handler is the invocable behind a Tool. Arguments arrive as decoded JSON
// keyed by parameter name.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ToolResult is the typed outcome of a tool invocation. Tool failures are
// values, not propagated errors, so a reasoning session can inspect them and
// recover.
type ToolResult struct {
	ToolName      string        `json:"tool_name"`
	Success       bool          `json:"success"`
	Output        interface{}   `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
}

// Content renders the result as the text handed back to the reasoning
// backend: the output for success, a diagnostic for failure.
func (r ToolResult) Content() string {
	if !r.Success {
		return "Tool call failed: " + r.Error
	}
	switch out := r.Output.(type) {
	case string:
		return out
	default:
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Sprintf("%v", out)
		}
		return string(data)
	}
}

// Tool is a callable capability exposed to a reasoning backend, with a
// declared parameter schema. Tools are stateless; the handler may have
// arbitrary external side effects.
type Tool struct {
	name         string
	description  string
	parameters   []Parameter
	handler      Handler
	outputSchema map[string]interface{}
}

func NewTool(name, description string, parameters []Parameter, handler Handler) *Tool {
	return &Tool{
		name:        name,
		description: description,
		parameters:  parameters,
		handler:     handler,
	}
}

// WithOutputSchema attaches a structural description of the return value.
func (t *Tool) WithOutputSchema(outputSchema map[string]interface{}) *Tool {
	t.outputSchema = outputSchema
	return t
}

func (t *Tool) Name() string                         { return t.name }
func (t *Tool) Description() string                  { return t.description }
func (t *Tool) Parameters() []Parameter              { return t.parameters }
func (t *Tool) OutputSchema() map[string]interface{} { return t.outputSchema }

// Invoke runs the tool handler. This is the isolation boundary for backend
// driven tool calls: handler errors and panics become an error-variant
// ToolResult so that one failing call does not terminate an otherwise
// recoverable reasoning session.
func (t *Tool) Invoke(ctx context.Context, args map[string]interface{}) (result ToolResult) {
	start := time.Now()
	result = ToolResult{ToolName: t.name}

	defer func() {
		result.ExecutionTime = time.Since(start)
		if r := recover(); r != nil {
			result.Success = false
			result.Output = nil
			result.Error = fmt.Sprintf("panic: %v", r)
			slog.Error("Tool invocation panicked", "tool", t.name, "panic", r)
		}
	}()

	slog.Debug("Invoking tool", "tool", t.name, "args", args)

	if t.handler == nil {
		result.Success = false
		result.Error = "tool has no handler"
		return result
	}

	output, err := t.handler(ctx, args)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		slog.Warn("Tool invocation failed", "tool", t.name, "error", err)
		return result
	}

	result.Success = true
	result.Output = output
	return result
}

// AsFunctionSchema renders the tool for backends that nest type information
// under a "function" object (the OpenAI chat-completions convention).
func (t *Tool) AsFunctionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        t.name,
			"description": t.description,
			"parameters":  t.parameterObjectSchema(),
		},
	}
}

// AsInputSchema renders the parameter object alone, for backends that take a
// bare JSON-schema object next to the name (the Anthropic input_schema and
// Gemini functionDeclarations conventions).
func (t *Tool) AsInputSchema() map[string]interface{} {
	return t.parameterObjectSchema()
}

// AsDeclarativeSchema renders the tool as a flat declarative field list, for
// backends without nested function-call objects.
func (t *Tool) AsDeclarativeSchema() map[string]interface{} {
	parameters := make(map[string]interface{}, len(t.parameters))
	for _, p := range t.parameters {
		parameters[p.Name()] = p.AsFunctionSchema()
	}

	schema := map[string]interface{}{
		"name":        t.name,
		"description": t.description,
		"parameters":  parameters,
		"required":    t.requiredNames(),
	}

	if t.outputSchema != nil {
		schema["output_schema"] = t.outputSchema
	}

	return schema
}

// AsStandardSchema renders the tool in the backend-neutral form.
func (t *Tool) AsStandardSchema() map[string]interface{} {
	parameters := make([]map[string]interface{}, 0, len(t.parameters))
	for _, p := range t.parameters {
		parameters = append(parameters, p.AsStandardSchema())
	}

	schema := map[string]interface{}{
		"name":        t.name,
		"description": t.description,
		"parameters":  parameters,
	}

	if t.outputSchema != nil {
		schema["output_schema"] = t.outputSchema
	}

	return schema
}

// AsNaturalLanguage renders the tool as documentation prose for a human or an
// LLM reading it in a prompt.
func (t *Tool) AsNaturalLanguage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Function %s: %s. Parameters:\n", t.name, t.description)

	if len(t.parameters) == 0 {
		b.WriteString("No parameters.")
	} else {
		for _, p := range t.parameters {
			b.WriteString("\t" + p.AsNaturalLanguage() + "\n")
		}
	}

	t.appendOutputSchema(&b)
	return b.String()
}

// AsDocumented renders the tool as inline code-comment documentation for the
// implementer of a protocol, using implementation-language type names.
func (t *Tool) AsDocumented() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool %s:\n\n%s\nParameters:\n", t.name, t.description)

	if len(t.parameters) == 0 {
		b.WriteString("No parameters.")
	} else {
		for _, p := range t.parameters {
			b.WriteString("\t" + p.AsDocumented() + "\n")
		}
	}

	t.appendOutputSchema(&b)
	return b.String()
}

func (t *Tool) appendOutputSchema(b *strings.Builder) {
	if t.outputSchema == nil {
		return
	}
	data, err := json.MarshalIndent(t.outputSchema, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(b, "\nReturns a dictionary with schema: %s", string(data))
}

func (t *Tool) parameterObjectSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(t.parameters))
	for _, p := range t.parameters {
		properties[p.Name()] = p.AsFunctionSchema()
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   t.requiredNames(),
	}
}

func (t *Tool) requiredNames() []string {
	required := make([]string, 0, len(t.parameters))
	for _, p := range t.parameters {
		if p.Required() {
			required = append(required, p.Name())
		}
	}
	return required
}

// ToolFromStandardSchema reconstructs a Tool (without a handler) from its
// standard schema rendering.
func ToolFromStandardSchema(schema map[string]interface{}, handler Handler) (*Tool, error) {
	name, _ := schema["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("tool schema missing name")
	}
	description, _ := schema["description"].(string)

	var parameters []Parameter
	switch raw := schema["parameters"].(type) {
	case []map[string]interface{}:
		for _, paramSchema := range raw {
			p, err := ParameterFromStandardSchema(paramSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", name, err)
			}
			parameters = append(parameters, p)
		}
	case []interface{}:
		for _, item := range raw {
			paramSchema, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("tool %q: parameter schema must be an object, got %T", name, item)
			}
			p, err := ParameterFromStandardSchema(paramSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", name, err)
			}
			parameters = append(parameters, p)
		}
	case nil:
	default:
		return nil, fmt.Errorf("tool %q: parameters must be a list, got %T", name, raw)
	}

	tool := NewTool(name, description, parameters, handler)
	if outputSchema, ok := schema["output_schema"].(map[string]interface{}); ok {
		tool = tool.WithOutputSchema(outputSchema)
	}
	return tool, nil
}
