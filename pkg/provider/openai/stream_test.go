package openai

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/message"
)

func sseHandler(lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		bw := bufio.NewWriter(w)
		for _, line := range lines {
			fmt.Fprintf(bw, "data: %s\n\n", line)
			bw.Flush()
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func collectDeltas(t *testing.T, deltas <-chan message.LlmResponse, errCh <-chan error) ([]message.LlmResponse, error) {
	t.Helper()
	var out []message.LlmResponse
	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				return out, <-errCh
			}
			out = append(out, d)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream deltas")
		}
	}
}

func TestStream_ReassemblesTextDeltasAndUsage(t *testing.T) {
	server := httptest.NewServer(sseHandler([]string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`,
		`[DONE]`,
	}))
	defer server.Close()

	p := New(Config{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	deltas, errCh := p.Stream(context.Background(), []message.Message{message.User("hi")}, message.GenerationOptions{})
	got, err := collectDeltas(t, deltas, errCh)
	require.NoError(t, err)

	var text string
	var usage *message.UsageInfo
	for _, d := range got {
		text += d.Content
		if d.Usage != nil {
			usage = d.Usage
		}
	}
	assert.Equal(t, "Hello", text)
	require.NotNil(t, usage)
	assert.Equal(t, 3, usage.TotalTokens)
}

func TestStream_ToolCallFragmentsCarryIndex(t *testing.T) {
	server := httptest.NewServer(sseHandler([]string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","type":"function","function":{"name":"lookup","arguments":"{"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"}"}}]}}]}`,
		`[DONE]`,
	}))
	defer server.Close()

	p := New(Config{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	deltas, errCh := p.Stream(context.Background(), []message.Message{message.User("hi")}, message.GenerationOptions{})
	got, err := collectDeltas(t, deltas, errCh)
	require.NoError(t, err)

	var fragments []message.ToolCall
	for _, d := range got {
		fragments = append(fragments, d.ToolCalls...)
	}
	require.Len(t, fragments, 2)
	require.NotNil(t, fragments[0].Index)
	assert.Equal(t, 0, *fragments[0].Index)
}

func TestStream_ErrorChunkAbortsWithServerKind(t *testing.T) {
	server := httptest.NewServer(sseHandler([]string{
		`{"error":{"message":"overloaded"}}`,
	}))
	defer server.Close()

	p := New(Config{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	deltas, errCh := p.Stream(context.Background(), []message.Message{message.User("hi")}, message.GenerationOptions{})
	_, err := collectDeltas(t, deltas, errCh)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Server))
}

func TestStream_UnparsableChunkIsSkippedNotFatal(t *testing.T) {
	server := httptest.NewServer(sseHandler([]string{
		`not json at all`,
		`{"choices":[{"delta":{"content":"ok"}}]}`,
		`[DONE]`,
	}))
	defer server.Close()

	p := New(Config{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	deltas, errCh := p.Stream(context.Background(), []message.Message{message.User("hi")}, message.GenerationOptions{})
	got, err := collectDeltas(t, deltas, errCh)
	require.NoError(t, err)

	var text string
	for _, d := range got {
		text += d.Content
	}
	assert.Equal(t, "ok", text)
}

func TestStream_NonOKStatusReportsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	p := New(Config{APIKey: "k", BaseURL: server.URL})
	defer p.Close()

	deltas, errCh := p.Stream(context.Background(), []message.Message{message.User("hi")}, message.GenerationOptions{})
	_, err := collectDeltas(t, deltas, errCh)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RateLimit))
}
