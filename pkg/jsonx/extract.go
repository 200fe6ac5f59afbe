// Package jsonx implements the best-effort JSON sanitizer the structured
// output retry loop uses to recover a usable payload from a model response
// that wraps JSON in reasoning markers or a fenced code block.
package jsonx

import "strings"

// Extract strips <think>...</think> spans, unwraps a fenced ```json code
// block when present, and otherwise falls back to the substring between the
// first '{' and the last '}'. A payload that is already bare, valid JSON is
// returned unchanged.
func Extract(raw string) string {
	s := stripThinkBlocks(raw)
	s = strings.TrimSpace(s)

	if fenced := unwrapFence(s); fenced != "" {
		return strings.TrimSpace(fenced)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func stripThinkBlocks(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
}

func unwrapFence(s string) string {
	const openJSON = "```json"
	const open = "```"
	idx := strings.Index(s, openJSON)
	skip := len(openJSON)
	if idx == -1 {
		idx = strings.Index(s, open)
		skip = len(open)
		if idx == -1 {
			return ""
		}
	}
	rest := s[idx+skip:]
	closeIdx := strings.Index(rest, open)
	if closeIdx == -1 {
		return ""
	}
	return rest[:closeIdx]
}
