package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_BareJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, Extract(`{"a":1}`))
}

func TestExtract_FencedJSONBlock(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"a\":1}\n```\nLet me know if that helps."
	assert.Equal(t, `{"a":1}`, Extract(raw))
}

func TestExtract_PlainFence(t *testing.T) {
	raw := "```\n{\"a\":1}\n```"
	assert.Equal(t, `{"a":1}`, Extract(raw))
}

func TestExtract_ThinkBlockStripped(t *testing.T) {
	raw := "<think>let me reason about this</think>{\"a\":1}"
	assert.Equal(t, `{"a":1}`, Extract(raw))
}

func TestExtract_MultipleThinkBlocks(t *testing.T) {
	raw := "<think>one</think>prefix<think>two</think>{\"a\":1}"
	assert.Equal(t, `{"a":1}`, Extract(raw))
}

func TestExtract_FallsBackToBraceSubstring(t *testing.T) {
	raw := "the answer is {\"a\":1} as requested"
	assert.Equal(t, `{"a":1}`, Extract(raw))
}

func TestExtract_NoBracesReturnsTrimmed(t *testing.T) {
	assert.Equal(t, "no json here", Extract("  no json here  "))
}
