package schema

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TaskSchema is the JSON-schema-like description of a task's input/output
// contract. It is immutable once negotiation starts: the maps are copied on
// construction and only exposed as rendered JSON.
type TaskSchema struct {
	description string
	input       map[string]interface{}
	output      map[string]interface{}
}

// taskSchemaFields is the decode target for map/JSON construction.
type taskSchemaFields struct {
	Description string                 `mapstructure:"description" json:"description,omitempty"`
	Input       map[string]interface{} `mapstructure:"input" json:"input"`
	Output      map[string]interface{} `mapstructure:"output" json:"output"`
}

func NewTaskSchema(description string, input, output map[string]interface{}) *TaskSchema {
	return &TaskSchema{
		description: description,
		input:       copyMap(input),
		output:      copyMap(output),
	}
}

// TaskSchemaFromMap builds a TaskSchema from a loosely typed map, as produced
// by config files or JSON decoding.
func TaskSchemaFromMap(m map[string]interface{}) (*TaskSchema, error) {
	var fields taskSchemaFields
	if err := mapstructure.Decode(m, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode task schema: %w", err)
	}
	if fields.Input == nil && fields.Output == nil {
		return nil, fmt.Errorf("task schema must declare an input or output contract")
	}
	return NewTaskSchema(fields.Description, fields.Input, fields.Output), nil
}

// TaskSchemaFromJSON builds a TaskSchema from its JSON rendering.
func TaskSchemaFromJSON(data []byte) (*TaskSchema, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse task schema JSON: %w", err)
	}
	return TaskSchemaFromMap(m)
}

func (s *TaskSchema) Description() string { return s.description }

// Input returns a copy of the input contract.
func (s *TaskSchema) Input() map[string]interface{} { return copyMap(s.input) }

// Output returns a copy of the output contract.
func (s *TaskSchema) Output() map[string]interface{} { return copyMap(s.output) }

// JSON renders the schema as the JSON document embedded in prompts.
func (s *TaskSchema) JSON() string {
	fields := taskSchemaFields{
		Description: s.description,
		Input:       s.input,
		Output:      s.output,
	}
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", fields)
	}
	return string(data)
}

func (s *TaskSchema) String() string { return s.JSON() }

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
