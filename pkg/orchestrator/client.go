// Package orchestrator is the user-facing conversation DSL: a Client owns a
// provider and a memory manager; a Scope, created per top-level
// orchestration call, carries registered tools and drives the Re-Act loop.
package orchestrator

import (
	"github.com/lucerna-ai/lucerna/pkg/memory"
	"github.com/lucerna-ai/lucerna/pkg/provider"
)

// Client owns its Provider and Memory manager exclusively; Close releases
// both deterministically.
type Client struct {
	Provider provider.Provider
	Memory   *memory.Manager

	defaultMaxToolRounds int
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

func WithDefaultMaxToolRounds(n int) ClientOption {
	return func(c *Client) { c.defaultMaxToolRounds = n }
}

func NewClient(p provider.Provider, mem *memory.Manager, opts ...ClientOption) *Client {
	c := &Client{Provider: p, Memory: mem, defaultMaxToolRounds: 5}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the provider and the memory manager. It is the caller's
// responsibility to call this exactly once when the client is no longer
// needed.
func (c *Client) Close() error {
	memErr := c.Memory.Close()
	provErr := c.Provider.Close()
	if memErr != nil {
		return memErr
	}
	return provErr
}

// NewScope creates a short-lived orchestration scope bound to this client.
func (c *Client) NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		client:        c,
		maxToolRounds: c.defaultMaxToolRounds,
		tools:         make(map[string]ToolExecutor),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
