// Package schema models tool and task schemas and renders them into the
// formats the reasoning backends and prompt surfaces consume.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parameter type names as they appear in the standard schema.
const (
	TypeString = "string"
	TypeEnum   = "enum"
	TypeNumber = "number"
	TypeArray  = "array"
)

// UnsupportedParameterTypeError signals a contract violation by the schema's
// producer: a standard schema carried a type outside the known variants.
type UnsupportedParameterTypeError struct {
	Type string
}

func (e *UnsupportedParameterTypeError) Error() string {
	return fmt.Sprintf("unsupported parameter type: %q (supported: string, enum, number, array)", e.Type)
}

// Parameter is a declared tool parameter. Every variant renders into four
// representations that must agree on name, description and required-ness:
//
//   - AsFunctionSchema: property schema for the nested "function" tool-call
//     convention (OpenAI, Anthropic input_schema)
//   - AsDeclarativeSchema: flat declarative convention (Gemini
//     functionDeclarations, llama-style schemas)
//   - AsStandardSchema: backend-neutral, round-trippable via
//     ParameterFromStandardSchema
//   - AsNaturalLanguage / AsDocumented: prose forms for prompts and for
//     inline code documentation respectively
type Parameter interface {
	Name() string
	Description() string
	Required() bool

	AsFunctionSchema() map[string]interface{}
	AsDeclarativeSchema() map[string]interface{}
	AsStandardSchema() map[string]interface{}
	AsNaturalLanguage() string
	AsDocumented() string
}

// base carries the fields shared by all parameter variants.
type base struct {
	name        string
	description string
	required    bool
}

func (b base) Name() string        { return b.name }
func (b base) Description() string { return b.description }
func (b base) Required() bool      { return b.required }

func (b base) requiredSuffix() string {
	if b.required {
		return ", required"
	}
	return ""
}

// StringParameter is a free-form string parameter.
type StringParameter struct {
	base
}

func NewStringParameter(name, description string, required bool) *StringParameter {
	return &StringParameter{base{name: name, description: description, required: required}}
}

func (p *StringParameter) AsFunctionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": p.description,
	}
}

func (p *StringParameter) AsDeclarativeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"name":        p.name,
		"description": p.description,
	}
}

func (p *StringParameter) AsStandardSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        TypeString,
		"name":        p.name,
		"description": p.description,
		"required":    p.required,
	}
}

func (p *StringParameter) AsNaturalLanguage() string {
	return fmt.Sprintf("%s (string%s): %s.", p.name, p.requiredSuffix(), p.description)
}

func (p *StringParameter) AsDocumented() string {
	return fmt.Sprintf("%s (str%s): %s.", p.name, p.requiredSuffix(), p.description)
}

// EnumParameter is a string parameter restricted to an ordered set of values.
type EnumParameter struct {
	base
	values []string
}

func NewEnumParameter(name, description string, values []string, required bool) *EnumParameter {
	return &EnumParameter{
		base:   base{name: name, description: description, required: required},
		values: values,
	}
}

// Values returns the allowed values in declaration order.
func (p *EnumParameter) Values() []string { return p.values }

func (p *EnumParameter) AsFunctionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": p.description,
		"enum":        p.values,
	}
}

func (p *EnumParameter) AsDeclarativeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"name":        p.name,
		"description": p.description,
		"enum":        p.values,
	}
}

func (p *EnumParameter) AsStandardSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        TypeEnum,
		"name":        p.name,
		"description": p.description,
		"values":      p.values,
		"required":    p.required,
	}
}

func (p *EnumParameter) AsNaturalLanguage() string {
	return fmt.Sprintf("%s (enum%s): %s. Possible values: %s", p.name, p.requiredSuffix(), p.description, joinValues(p.values))
}

func (p *EnumParameter) AsDocumented() string {
	return fmt.Sprintf("%s (str%s): %s. Possible values: %s", p.name, p.requiredSuffix(), p.description, joinValues(p.values))
}

// NumberParameter is a numeric parameter.
type NumberParameter struct {
	base
}

func NewNumberParameter(name, description string, required bool) *NumberParameter {
	return &NumberParameter{base{name: name, description: description, required: required}}
}

func (p *NumberParameter) AsFunctionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": p.description,
	}
}

func (p *NumberParameter) AsDeclarativeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"name":        p.name,
		"description": p.description,
	}
}

func (p *NumberParameter) AsStandardSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        TypeNumber,
		"name":        p.name,
		"description": p.description,
		"required":    p.required,
	}
}

func (p *NumberParameter) AsNaturalLanguage() string {
	return fmt.Sprintf("%s (number%s): %s.", p.name, p.requiredSuffix(), p.description)
}

func (p *NumberParameter) AsDocumented() string {
	return fmt.Sprintf("%s (number%s): %s.", p.name, p.requiredSuffix(), p.description)
}

// ArrayParameter is a list parameter with a JSON-schema item description.
// The item schema is a plain JSON-schema fragment, not a nested Parameter.
type ArrayParameter struct {
	base
	itemSchema map[string]interface{}
}

func NewArrayParameter(name, description string, required bool, itemSchema map[string]interface{}) *ArrayParameter {
	return &ArrayParameter{
		base:       base{name: name, description: description, required: required},
		itemSchema: itemSchema,
	}
}

// ItemSchema returns the JSON-schema fragment describing each item.
func (p *ArrayParameter) ItemSchema() map[string]interface{} { return p.itemSchema }

func (p *ArrayParameter) AsFunctionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": p.description,
		"items":       p.itemSchema,
	}
}

func (p *ArrayParameter) AsDeclarativeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"name":        p.name,
		"description": p.description,
		"items":       p.itemSchema,
	}
}

func (p *ArrayParameter) AsStandardSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        TypeArray,
		"name":        p.name,
		"description": p.description,
		"item_schema": p.itemSchema,
		"required":    p.required,
	}
}

func (p *ArrayParameter) AsNaturalLanguage() string {
	return fmt.Sprintf("%s (array%s): %s. Each item should follow the JSON schema: %s",
		p.name, p.requiredSuffix(), p.description, mustMarshalJSON(p.itemSchema))
}

func (p *ArrayParameter) AsDocumented() string {
	return fmt.Sprintf("%s (list%s): %s. Each item should follow the JSON schema: %s",
		p.name, p.requiredSuffix(), p.description, mustMarshalJSON(p.itemSchema))
}

// ParameterFromStandardSchema reconstructs a Parameter from its standard
// schema rendering. An unknown "type" value is a hard, non-recoverable
// failure: it signals a contract violation by the schema's producer.
func ParameterFromStandardSchema(schema map[string]interface{}) (Parameter, error) {
	name, _ := schema["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("parameter schema missing name")
	}
	description, _ := schema["description"].(string)
	required, _ := schema["required"].(bool)

	typeName, _ := schema["type"].(string)
	switch typeName {
	case TypeString:
		return NewStringParameter(name, description, required), nil
	case TypeEnum:
		values, err := stringSlice(schema["values"])
		if err != nil {
			return nil, fmt.Errorf("enum parameter %q: %w", name, err)
		}
		return NewEnumParameter(name, description, values, required), nil
	case TypeNumber:
		return NewNumberParameter(name, description, required), nil
	case TypeArray:
		itemSchema, _ := schema["item_schema"].(map[string]interface{})
		return NewArrayParameter(name, description, required, itemSchema), nil
	default:
		return nil, &UnsupportedParameterTypeError{Type: typeName}
	}
}

func stringSlice(v interface{}) ([]string, error) {
	switch values := v.(type) {
	case []string:
		return values, nil
	case []interface{}:
		out := make([]string, 0, len(values))
		for _, item := range values {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string enum value %v", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("values must be a string list, got %T", v)
	}
}

func joinValues(values []string) string {
	return strings.Join(values, ", ")
}

func mustMarshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Item schemas come from JSON or literal maps; marshalling only fails
		// on non-JSON values, which is a producer bug.
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
