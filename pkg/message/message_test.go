package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_ConstructorRoles(t *testing.T) {
	assert.Equal(t, RoleUser, User("hi").Role)
	assert.Equal(t, RoleSystem, System("be nice").Role)
	assert.Equal(t, RoleAssistant, Assistant("ok").Role)
	assert.Equal(t, RoleTool, ToolResult("call-1", "lookup", "42").Role)
}

func TestMessage_ToolCallsSurviveRoundTrip(t *testing.T) {
	msg := Assistant("", ToolCall{
		ID:   "call-1",
		Type: "function",
		Function: FunctionCall{
			Name:      "lookup",
			Arguments: `{"q":"go"}`,
		},
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.ToolCalls, 1)
	assert.Equal(t, "call-1", decoded.ToolCalls[0].ID)
	assert.Equal(t, "lookup", decoded.ToolCalls[0].Function.Name)
	assert.Nil(t, decoded.ToolCalls[0].Index)
}

func TestMessage_ToolResultCarriesCallID(t *testing.T) {
	msg := ToolResult("call-7", "lookup", "result text")
	assert.Equal(t, "call-7", msg.ToolCallID)
	assert.Equal(t, "lookup", msg.Name)
	assert.Equal(t, "result text", msg.Content.Text())
}

func TestToolCall_IndexOmittedWhenFinalized(t *testing.T) {
	call := ToolCall{ID: "x", Function: FunctionCall{Name: "f"}}
	data, err := json.Marshal(call)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "index")
}
