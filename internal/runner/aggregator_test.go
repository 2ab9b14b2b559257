package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatkit/internal/provider"
)

func TestAggregator_InterleavedSlots(t *testing.T) {
	agg := NewAggregator()
	assert.False(t, agg.Triggered())

	agg.Add(provider.ToolCall{Index: 1, ID: "call_b", Name: "unitConverter", Arguments: `{"value":`})
	agg.Add(provider.ToolCall{Index: 0, ID: "call_a", Name: "calculator", Arguments: `{"num1":10,`})
	agg.Add(provider.ToolCall{Index: 1, Arguments: `100,"from":"cm","to":"m"}`})
	agg.Add(provider.ToolCall{Index: 0, Arguments: `"num2":5,"operation":"add"}`})

	require.True(t, agg.Triggered())
	calls := agg.Calls()
	require.Len(t, calls, 2)

	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "calculator", calls[0].Name)
	assert.Equal(t, `{"num1":10,"num2":5,"operation":"add"}`, calls[0].Arguments)
	assert.Equal(t, "function", calls[0].Type)

	assert.Equal(t, "call_b", calls[1].ID)
	assert.Equal(t, `{"value":100,"from":"cm","to":"m"}`, calls[1].Arguments)
}

func TestAggregator_LaterFieldsOverwrite(t *testing.T) {
	agg := NewAggregator()
	agg.Add(provider.ToolCall{Index: 0, Name: "calc"})
	agg.Add(provider.ToolCall{Index: 0, Name: "calculator", Type: "function"})

	calls := agg.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "calculator", calls[0].Name)
	assert.Equal(t, "tool_call_0", calls[0].ID)
	assert.Empty(t, calls[0].Arguments)
}

func TestAggregator_Empty(t *testing.T) {
	agg := NewAggregator()
	assert.Empty(t, agg.Calls())
	assert.False(t, agg.Triggered())
}
