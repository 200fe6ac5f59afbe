package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/pkg/message"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func TestAskJSON_DecodesOnFirstTry(t *testing.T) {
	p := newFakeProvider(message.LlmResponse{Content: `{"x":1,"y":2}`})
	c := newTestClient(t, p)
	scope := c.NewScope()

	got, err := AskJSON[point](context.Background(), scope, "give me a point", StructuredOptions{})
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, got)
	assert.Equal(t, 1, p.callCount())
}

func TestAskJSON_RecoversAfterOneCorrection(t *testing.T) {
	p := newFakeProvider(
		message.LlmResponse{Content: "sure, here: {x: 1, y: 2} (not quite json)"},
		message.LlmResponse{Content: `{"x":1,"y":2}`},
	)
	c := newTestClient(t, p)
	scope := c.NewScope()

	got, err := AskJSON[point](context.Background(), scope, "give me a point", StructuredOptions{})
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, got)
	assert.Equal(t, 2, p.callCount())
}

func TestAskJSON_GivesUpAfterMaxRetries(t *testing.T) {
	bad := message.LlmResponse{Content: "still not json"}
	p := newFakeProvider(bad)
	c := newTestClient(t, p)
	scope := c.NewScope()

	_, err := AskJSON[point](context.Background(), scope, "give me a point", StructuredOptions{MaxRetries: 1})
	require.Error(t, err)
}

func TestAskJSON_ExtractsFromFencedResponse(t *testing.T) {
	p := newFakeProvider(message.LlmResponse{Content: "```json\n{\"x\":5,\"y\":6}\n```"})
	c := newTestClient(t, p)
	scope := c.NewScope()

	got, err := AskJSON[point](context.Background(), scope, "q", StructuredOptions{})
	require.NoError(t, err)
	assert.Equal(t, point{X: 5, Y: 6}, got)
}
