package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherTool(handler Handler) *Tool {
	return NewTool("get_weather", "Get the current weather for a city", []Parameter{
		NewStringParameter("city", "City name", true),
		NewEnumParameter("unit", "Temperature unit", []string{"celsius", "fahrenheit"}, false),
	}, handler)
}

func TestToolInvokeSuccess(t *testing.T) {
	tool := weatherTool(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"temperature": 21.5}, nil
	})

	result := tool.Invoke(context.Background(), map[string]interface{}{"city": "Oslo"})
	assert.True(t, result.Success)
	assert.Equal(t, "get_weather", result.ToolName)
	assert.Equal(t, `{"temperature":21.5}`, result.Content())
}

func TestToolInvokeHandlerError(t *testing.T) {
	tool := weatherTool(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return nil, errors.New("city not found")
	})

	result := tool.Invoke(context.Background(), map[string]interface{}{"city": "Atlantis"})
	assert.False(t, result.Success)
	assert.Equal(t, "city not found", result.Error)
	assert.Equal(t, "Tool call failed: city not found", result.Content())
}

func TestToolInvokeRecoversPanic(t *testing.T) {
	tool := weatherTool(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		panic("boom")
	})

	result := tool.Invoke(context.Background(), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "boom")
	assert.Contains(t, result.Content(), "Tool call failed: ")
}

func TestToolInvokeNoHandler(t *testing.T) {
	tool := weatherTool(nil)

	result := tool.Invoke(context.Background(), nil)
	assert.False(t, result.Success)
	assert.Equal(t, "tool has no handler", result.Error)
}

func TestToolAsFunctionSchema(t *testing.T) {
	tool := weatherTool(nil)

	fs := tool.AsFunctionSchema()
	assert.Equal(t, "function", fs["type"])

	function, ok := fs["function"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "get_weather", function["name"])
	assert.Equal(t, "Get the current weather for a city", function["description"])

	parameters, ok := function["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", parameters["type"])

	properties, ok := parameters["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, properties, "city")
	assert.Contains(t, properties, "unit")
	assert.Equal(t, []string{"city"}, parameters["required"])
}

func TestToolAsInputSchema(t *testing.T) {
	tool := weatherTool(nil)

	input := tool.AsInputSchema()
	assert.Equal(t, "object", input["type"])
	properties, ok := input["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, properties, 2)
}

func TestToolAsNaturalLanguage(t *testing.T) {
	tool := weatherTool(nil)

	nl := tool.AsNaturalLanguage()
	assert.Contains(t, nl, "Function get_weather: Get the current weather for a city")
	assert.Contains(t, nl, "city (string, required): City name.")
	assert.Contains(t, nl, "unit (enum): Temperature unit. Possible values: celsius, fahrenheit")
}

func TestToolAsNaturalLanguageNoParameters(t *testing.T) {
	tool := NewTool("ping", "Check liveness", nil, nil)
	assert.Contains(t, tool.AsNaturalLanguage(), "No parameters.")
}

func TestToolAsDocumentedIncludesOutputSchema(t *testing.T) {
	tool := weatherTool(nil).WithOutputSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"temperature": map[string]interface{}{"type": "number"},
		},
	})

	doc := tool.AsDocumented()
	assert.Contains(t, doc, "Tool get_weather:")
	assert.Contains(t, doc, "Returns a dictionary with schema: ")
	assert.Contains(t, doc, `"temperature"`)
}

func TestToolStandardSchemaRoundTrip(t *testing.T) {
	tool := weatherTool(nil)

	rebuilt, err := ToolFromStandardSchema(tool.AsStandardSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, tool.AsStandardSchema(), rebuilt.AsStandardSchema())
}

func TestToolFromStandardSchemaUnknownParameterType(t *testing.T) {
	_, err := ToolFromStandardSchema(map[string]interface{}{
		"name":        "odd",
		"description": "has a bad parameter",
		"parameters": []interface{}{
			map[string]interface{}{"name": "p", "type": "tuple"},
		},
	}, nil)
	require.Error(t, err)

	var unsupported *UnsupportedParameterTypeError
	assert.ErrorAs(t, err, &unsupported)
}
