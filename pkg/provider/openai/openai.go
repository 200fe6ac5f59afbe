// Package openai implements provider.Provider against an OpenAI-compatible
// chat-completions endpoint, covering both the non-streaming JSON response
// and the SSE-framed streaming response.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucerna-ai/lucerna/pkg/errs"
	"github.com/lucerna-ai/lucerna/pkg/message"
)

// Config configures a Provider instance.
type Config struct {
	APIKey        string
	BaseURL       string
	DefaultModel  string
	ExtraHeaders  map[string]string
	HTTPClient    *http.Client
}

// Provider is the default provider.Provider implementation, talking to any
// OpenAI-compatible `/chat/completions` endpoint.
type Provider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	headers      map[string]string
	client       *http.Client
	ownsClient   bool
}

func New(cfg Config) *Provider {
	client := cfg.HTTPClient
	ownsClient := false
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
		ownsClient = true
	}
	return &Provider{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		headers:      sanitizeHeaders(cfg.ExtraHeaders),
		client:       client,
		ownsClient:   ownsClient,
	}
}

func sanitizeHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Close releases the HTTP client's idle connections if this Provider
// created it; a caller-supplied client is left untouched.
func (p *Provider) Close() error {
	if p.ownsClient {
		p.client.CloseIdleConnections()
	}
	return nil
}

func (p *Provider) model(opts message.GenerationOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return p.defaultModel
}

func (p *Provider) newRequest(ctx context.Context, body map[string]interface{}) (*http.Request, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errs.New(errs.Serialization, err, "encode chat completions request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return nil, errs.New(errs.Unknown, err, "build chat completions request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func requestBody(messages []message.Message, opts message.GenerationOptions, model string, stream bool) map[string]interface{} {
	body := map[string]interface{}{
		"model":    model,
		"messages": encodeMessages(messages),
		"stream":   stream,
	}
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		body["top_p"] = *opts.TopP
	}
	if opts.MaxTokens != nil {
		body["max_tokens"] = *opts.MaxTokens
	}
	if len(opts.StopSequences) > 0 {
		body["stop"] = opts.StopSequences
	}
	if opts.FrequencyPenalty != nil {
		body["frequency_penalty"] = *opts.FrequencyPenalty
	}
	if opts.PresencePenalty != nil {
		body["presence_penalty"] = *opts.PresencePenalty
	}
	if len(opts.Tools) > 0 {
		body["tools"] = encodeTools(opts.Tools)
	}
	if opts.ToolChoice != "" {
		body["tool_choice"] = opts.ToolChoice
	}
	return body
}

func encodeMessages(messages []message.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		entry := map[string]interface{}{"role": string(m.Role)}
		if !m.Content.IsEmpty() || len(m.ToolCalls) == 0 {
			if m.Content.IsParts() {
				entry["content"] = m.Content.Parts()
			} else {
				entry["content"] = m.Content.Text()
			}
		}
		if m.Name != "" {
			entry["name"] = m.Name
		}
		if len(m.ToolCalls) > 0 {
			entry["tool_calls"] = encodeToolCalls(m.ToolCalls)
		}
		if m.ToolCallID != "" {
			entry["tool_call_id"] = m.ToolCallID
		}
		out = append(out, entry)
	}
	return out
}

func encodeToolCalls(calls []message.ToolCall) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(calls))
	for _, c := range calls {
		kind := c.Type
		if kind == "" {
			kind = "function"
		}
		out = append(out, map[string]interface{}{
			"id":   c.ID,
			"type": kind,
			"function": map[string]interface{}{
				"name":      c.Function.Name,
				"arguments": c.Function.Arguments,
			},
		})
	}
	return out
}

func encodeTools(defs []message.ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Parameters,
			},
		})
	}
	return out
}

// Chat issues a single non-streaming request and returns the first choice.
func (p *Provider) Chat(ctx context.Context, messages []message.Message, opts message.GenerationOptions) (*message.LlmResponse, error) {
	req, err := p.newRequest(ctx, requestBody(messages, opts, p.model(opts), false))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.IO, err, "read chat completions response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw)
	}
	return parseChatCompletionsResponse(raw)
}

func classifyTransportError(err error) error {
	// http.Client.Do reports a canceled context inside a *url.Error, so a
	// plain == comparison would never match.
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return errs.New(errs.Unknown, err, "transport failure calling chat completions")
}

func statusError(status int, body []byte) error {
	msg := extractAPIErrorMessage(body)
	switch {
	case status == 401 || status == 403:
		return errs.New(errs.Authentication, nil, "%s", msg)
	case status == 429:
		return errs.New(errs.RateLimit, nil, "%s", msg)
	case status == 400:
		return errs.New(errs.InvalidRequest, nil, "%s", msg)
	case status >= 500:
		return errs.New(errs.Server, nil, "%s", msg)
	default:
		return errs.New(errs.Unknown, nil, "unexpected status %d: %s", status, msg)
	}
}

func extractAPIErrorMessage(body []byte) string {
	var structured struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		if structured.Error.Message != "" {
			return structured.Error.Message
		}
		if structured.Message != "" {
			return structured.Message
		}
	}
	raw := string(body)
	if len(raw) > 500 {
		raw = raw[:500] + "..."
	}
	return raw
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content          json.RawMessage `json:"content"`
			ReasoningContent string          `json:"reasoning_content"`
			ToolCalls        []wireToolCall  `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage *message.UsageInfo `json:"usage"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func parseChatCompletionsResponse(raw []byte) (*message.LlmResponse, error) {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errs.New(errs.Serialization, err, "decode chat completions response")
	}
	if len(wire.Choices) == 0 {
		return &message.LlmResponse{Usage: wire.Usage}, nil
	}
	choice := wire.Choices[0]
	return &message.LlmResponse{
		Content:          flattenContent(choice.Message.Content),
		ReasoningContent: choice.Message.ReasoningContent,
		ToolCalls:        toToolCalls(choice.Message.ToolCalls),
		Usage:            wire.Usage,
	}, nil
}

// flattenContent mirrors Content.FlattenedText for the raw wire shape: a
// plain string content passes through; a Parts array keeps only its text
// members concatenated; anything else flattens to empty.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asParts []message.ContentPart
	if err := json.Unmarshal(raw, &asParts); err == nil {
		var out string
		for _, p := range asParts {
			if p.Type == "text" {
				out += p.Text
			}
		}
		return out
	}
	return ""
}

func toToolCalls(wire []wireToolCall) []message.ToolCall {
	if len(wire) == 0 {
		return nil
	}
	out := make([]message.ToolCall, 0, len(wire))
	for _, w := range wire {
		kind := w.Type
		if kind == "" {
			kind = "function"
		}
		out = append(out, message.ToolCall{
			ID:   w.ID,
			Type: kind,
			Function: message.FunctionCall{
				Name:      w.Function.Name,
				Arguments: w.Function.Arguments,
			},
		})
	}
	return out
}
