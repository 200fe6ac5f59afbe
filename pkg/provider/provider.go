// Package provider defines the abstract LLM transport the orchestrator
// drives: a single blocking Chat call and a channel-based Stream call.
package provider

import (
	"context"

	"github.com/lucerna-ai/lucerna/pkg/message"
)

// Provider is the contract every concrete transport (OpenAI-compatible HTTP,
// or a test double) implements.
type Provider interface {
	Chat(ctx context.Context, messages []message.Message, opts message.GenerationOptions) (*message.LlmResponse, error)

	// Stream returns a receive-only delta channel and a one-shot error
	// channel. The delta channel is closed when the stream ends (cleanly or
	// on error); callers range over deltas, then check the error channel for
	// a terminal failure -- the idiomatic rendering of "a cold asynchronous
	// sequence that may fail".
	Stream(ctx context.Context, messages []message.Message, opts message.GenerationOptions) (<-chan message.LlmResponse, <-chan error)

	Close() error
}
