package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/logging"
	"github.com/lucerna-ai/lucerna/pkg/message"
)

const streamComponent = "openai.stream"

// Stream issues a streaming request and returns a delta channel plus a
// one-shot error channel. Both channels are produced by a single goroutine
// that owns the HTTP response body for its whole lifetime.
func (p *Provider) Stream(ctx context.Context, messages []message.Message, opts message.GenerationOptions) (<-chan message.LlmResponse, <-chan error) {
	deltas := make(chan message.LlmResponse)
	errCh := make(chan error, 1)

	req, err := p.newRequest(ctx, requestBody(messages, opts, p.model(opts), true))
	if err != nil {
		close(deltas)
		errCh <- err
		close(errCh)
		return deltas, errCh
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	go func() {
		// Deferred calls run last-in first-out: deltas closes first, then
		// errCh, so the error channel is closed after the delta channel.
		defer close(errCh)
		defer close(deltas)

		resp, err := p.client.Do(req)
		if err != nil {
			errCh <- classifyTransportError(err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			errCh <- statusError(resp.StatusCode, raw)
			return
		}

		if err := consumeSSE(ctx, resp.Body, deltas); err != nil {
			errCh <- err
		}
	}()

	return deltas, errCh
}

// consumeSSE scans `data: ` framed lines, decoding each chunk and emitting
// it on deltas until `[DONE]` or EOF. Individual chunk parse failures that
// are not business errors are logged and skipped (keep-alive tolerance);
// a chunk carrying an `error` field aborts the stream.
func consumeSSE(ctx context.Context, body io.Reader, deltas chan<- message.LlmResponse) error {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "{") {
			// Non-SSE framing fallback: a bare JSON error body.
			if chunk, err := decodeChunk(line); err == nil && chunk.errMsg != "" {
				return errs.New(errs.Unknown, nil, "%s", chunk.errMsg)
			}
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			return nil
		}

		chunk, err := decodeChunk(payload)
		if err != nil {
			logging.DebugCF(streamComponent, "skipping unparsable stream chunk", map[string]interface{}{"error": err.Error()})
			continue
		}
		if chunk.errMsg != "" {
			return errs.New(errs.Server, nil, "%s", chunk.errMsg)
		}

		// Usage travels in an additional response with empty content.
		resp := chunk.response
		usage := resp.Usage
		resp.Usage = nil
		out := []message.LlmResponse{resp}
		if usage != nil {
			out = append(out, message.LlmResponse{Usage: usage})
		}
		for _, r := range out {
			select {
			case deltas <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errs.New(errs.IO, err, "read sse stream")
	}
	return nil
}

type decodedChunk struct {
	response message.LlmResponse
	errMsg   string
}

type wireStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string             `json:"content"`
			ReasoningContent string             `json:"reasoning_content"`
			ToolCalls        []wireToolCallDelta `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *message.UsageInfo `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type wireToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func decodeChunk(payload string) (decodedChunk, error) {
	var wire wireStreamChunk
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return decodedChunk{}, err
	}
	if wire.Error != nil {
		return decodedChunk{errMsg: wire.Error.Message}, nil
	}

	var out message.LlmResponse
	if len(wire.Choices) > 0 {
		d := wire.Choices[0].Delta
		out.Content = d.Content
		out.ReasoningContent = d.ReasoningContent
		if len(d.ToolCalls) > 0 {
			out.ToolCalls = make([]message.ToolCall, 0, len(d.ToolCalls))
			for _, tc := range d.ToolCalls {
				index := tc.Index
				out.ToolCalls = append(out.ToolCalls, message.ToolCall{
					Index: &index,
					ID:    tc.ID,
					Type:  tc.Type,
					Function: message.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
		}
	}
	if wire.Usage != nil {
		out.Usage = wire.Usage
	}
	return decodedChunk{response: out}, nil
}
