package validator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeCustomSchema(t *testing.T) {
	raw := []byte(`{
		"input": {"x1": "float", "x2": "int", "name": "str", "flag": "bool"},
		"output": {"prediction": "float"}
	}`)

	input, contract := Synthesize(raw)

	require.Len(t, input, 4)
	assert.Equal(t, json.Number("1.0"), input["x1"])
	assert.Equal(t, json.Number("42"), input["x2"])
	assert.Equal(t, "example", input["name"])
	assert.Equal(t, true, input["flag"])

	require.NotNil(t, contract)
	assert.Equal(t, "float", contract["prediction"])
}

func TestSynthesizeCustomSchemaNested(t *testing.T) {
	raw := []byte(`{
		"input": {"user": {"age": "int", "city": "str"}},
		"output": {"score": "float"}
	}`)

	input, _ := Synthesize(raw)

	nested, ok := input["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("42"), nested["age"])
	assert.Equal(t, "example", nested["city"])
}

func TestSynthesizeCustomSchemaUnknownType(t *testing.T) {
	raw := []byte(`{"input": {"x": "decimal"}, "output": {}}`)

	input, contract := Synthesize(raw)

	require.Contains(t, input, "x")
	assert.Nil(t, input["x"])
	assert.Empty(t, contract)
}

func TestSynthesizeStructuralSchema(t *testing.T) {
	raw := []byte(`{
		"type": "object",
		"properties": {
			"title":  {"type": "string"},
			"rating": {"type": "number"},
			"count":  {"type": "integer"},
			"active": {"type": "boolean"},
			"meta":   {"type": "object"},
			"tags":   {"type": "array"}
		}
	}`)

	input, contract := Synthesize(raw)

	assert.Nil(t, contract)
	assert.Equal(t, "example text", input["title"])
	assert.Equal(t, json.Number("1.0"), input["rating"])
	assert.Equal(t, json.Number("1"), input["count"])
	assert.Equal(t, true, input["active"])
	assert.Equal(t, map[string]any{}, input["meta"])
	assert.Equal(t, []any{}, input["tags"])
}

func TestSynthesizeStructuralSchemaExampleWins(t *testing.T) {
	raw := []byte(`{
		"properties": {
			"text": {"type": "string", "example": "a great movie"}
		}
	}`)

	input, _ := Synthesize(raw)

	assert.Equal(t, "a great movie", input["text"])
}

func TestSynthesizeWrappedStructuralSchema(t *testing.T) {
	raw := []byte(`{
		"input": {
			"properties": {"text": {"type": "string"}}
		}
	}`)

	input, contract := Synthesize(raw)

	assert.Nil(t, contract)
	assert.Equal(t, "example text", input["text"])
}

func TestSynthesizeFallback(t *testing.T) {
	for name, raw := range map[string][]byte{
		"not json":       []byte(`{{{`),
		"no known shape": []byte(`{"version": 3}`),
		"empty object":   []byte(`{}`),
	} {
		t.Run(name, func(t *testing.T) {
			input, contract := Synthesize(raw)
			assert.Equal(t, map[string]any{}, input)
			assert.Nil(t, contract)
		})
	}
}
