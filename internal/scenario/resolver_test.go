package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveString(t *testing.T) {
	vars := map[string]interface{}{
		"baseUrl": "http://host",
		"token":   "T",
		"count":   float64(3),
		"flag":    true,
		"ratio":   1.5,
		"item": map[string]interface{}{
			"name": "widget",
			"qty":  float64(2),
		},
		"tags": []interface{}{"a", "b"},
	}
	r := NewResolver(vars, nil)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple", input: "Bearer {{token}}", expected: "Bearer T"},
		{name: "spaces inside braces", input: "{{ token }}", expected: "T"},
		{name: "number renders bare", input: "n={{count}}", expected: "n=3"},
		{name: "float renders shortest", input: "{{ratio}}", expected: "1.5"},
		{name: "bool renders lexical", input: "{{flag}}", expected: "true"},
		{name: "dotted path", input: "{{item.name}}", expected: "widget"},
		{name: "dotted number", input: "{{ item.qty }}", expected: "2"},
		{name: "array renders as JSON", input: "{{tags}}", expected: `["a","b"]`},
		{name: "miss left unchanged", input: "{{missing}}", expected: "{{missing}}"},
		{name: "dotted miss left unchanged", input: "{{item.nope}}", expected: "{{item.nope}}"},
		{name: "multiple placeholders", input: "{{baseUrl}}/u/{{token}}", expected: "http://host/u/T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.ResolveString(tt.input))
		})
	}
}

func TestResolveValueWalksStructures(t *testing.T) {
	r := NewResolver(map[string]interface{}{"name": "A"}, nil)

	input := map[string]interface{}{
		"user":  "{{name}}",
		"depth": map[string]interface{}{"inner": "{{name}}"},
		"list":  []interface{}{"{{name}}", float64(1), true},
		"num":   float64(7),
	}

	resolved := r.ResolveValue(input).(map[string]interface{})
	assert.Equal(t, "A", resolved["user"])
	assert.Equal(t, "A", resolved["depth"].(map[string]interface{})["inner"])
	assert.Equal(t, "A", resolved["list"].([]interface{})[0])
	assert.Equal(t, float64(1), resolved["list"].([]interface{})[1])
	assert.Equal(t, float64(7), resolved["num"])
}

func TestResolveIdempotentWhenNoPlaceholdersRemain(t *testing.T) {
	r := NewResolver(map[string]interface{}{"a": "x"}, nil)

	once := r.ResolveString("v={{a}} plain")
	twice := r.ResolveString(once)
	assert.Equal(t, once, twice)
}
