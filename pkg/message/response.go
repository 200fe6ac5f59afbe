package message

// UsageInfo reports token accounting as handed back by the provider
// verbatim; the orchestrator never computes these counts itself.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LlmResponse is one provider-emitted turn. In non-streaming use exactly one
// is produced per call; in streaming use many partial instances are emitted,
// any combination of Content, ReasoningContent, ToolCalls and Usage present.
type LlmResponse struct {
	Content          string     `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	Usage            *UsageInfo `json:"usage,omitempty"`
}
