package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskSchemaFromMap(t *testing.T) {
	ts, err := TaskSchemaFromMap(map[string]interface{}{
		"description": "Doubles a number",
		"input":       map[string]interface{}{"type": "number"},
		"output":      map[string]interface{}{"type": "number"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Doubles a number", ts.Description())
	assert.Equal(t, map[string]interface{}{"type": "number"}, ts.Input())
	assert.Equal(t, map[string]interface{}{"type": "number"}, ts.Output())
}

func TestTaskSchemaFromMapRequiresContract(t *testing.T) {
	_, err := TaskSchemaFromMap(map[string]interface{}{
		"description": "nothing declared",
	})
	assert.Error(t, err)
}

func TestTaskSchemaJSONRoundTrip(t *testing.T) {
	original := NewTaskSchema("Sums a list",
		map[string]interface{}{"type": "array"},
		map[string]interface{}{"type": "number"},
	)

	restored, err := TaskSchemaFromJSON([]byte(original.JSON()))
	require.NoError(t, err)

	assert.Equal(t, original.Description(), restored.Description())
	assert.Equal(t, original.Input(), restored.Input())
	assert.Equal(t, original.Output(), restored.Output())
}

func TestTaskSchemaFromJSONInvalid(t *testing.T) {
	_, err := TaskSchemaFromJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestTaskSchemaJSONShape(t *testing.T) {
	ts := NewTaskSchema("d",
		map[string]interface{}{"type": "string"},
		map[string]interface{}{"type": "string"},
	)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ts.JSON()), &decoded))
	assert.Equal(t, "d", decoded["description"])
	assert.Contains(t, decoded, "input")
	assert.Contains(t, decoded, "output")
}

func TestTaskSchemaCopiesContracts(t *testing.T) {
	input := map[string]interface{}{"type": "number"}
	ts := NewTaskSchema("d", input, nil)

	input["type"] = "mutated"
	assert.Equal(t, "number", ts.Input()["type"])

	// Accessor copies are detached too.
	ts.Input()["type"] = "mutated"
	assert.Equal(t, "number", ts.Input()["type"])
}
