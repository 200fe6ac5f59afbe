package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/jsonx"
	"github.com/lucerna-ai/lucerna/pkg/message"
)

// StructuredOptions configures AskJSON; MaxRetries defaults to 3 when zero.
type StructuredOptions struct {
	AskOptions
	MaxRetries int
}

func ptrFloat(v float64) *float64 { return &v }

// AskJSON issues a normal Ask, sanitizes the response with jsonx.Extract,
// and deserializes into T. On a deserialization failure it re-prompts the
// provider directly (bypassing memory) at a forced low temperature with a
// correction message, up to MaxRetries attempts, then gives up. Any other
// kind of failure (e.g. a transport error) is not retried.
func AskJSON[T any](ctx context.Context, s *Scope, userInput string, opts StructuredOptions) (T, error) {
	var zero T

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	raw, err := s.Ask(ctx, userInput, opts.AskOptions)
	if err != nil {
		return zero, err
	}

	for attempt := 0; ; attempt++ {
		cleaned := jsonx.Extract(raw)
		var value T
		decodeErr := json.Unmarshal([]byte(cleaned), &value)
		if decodeErr == nil {
			return value, nil
		}
		if attempt >= maxRetries {
			return zero, errs.New(errs.Serialization, decodeErr, "structured output did not deserialize after %d attempts", attempt+1)
		}

		correction := "Previous JSON invalid: " + decodeErr.Error() + ". Return ONLY JSON. Original content: " + raw
		genOpts := opts.Generation.Clone()
		genOpts.Temperature = ptrFloat(0.1)

		resp, err := s.client.Provider.Chat(ctx, []message.Message{message.User(correction)}, genOpts)
		if err != nil {
			return zero, err
		}
		s.lastUsage = resp.Usage
		raw = resp.Content
	}
}
