package orchestrator

import (
	"context"
	"sync"

	"github.com/lucerna-ai/lucerna/pkg/message"
)

// fakeProvider is a scripted provider.Provider test double: each call to
// Chat or Stream consumes the next scripted response in order, looping on
// the final one if the script runs out.
type fakeProvider struct {
	mu        sync.Mutex
	responses []message.LlmResponse
	errs      []error
	calls     int
	closed    bool
}

func newFakeProvider(responses ...message.LlmResponse) *fakeProvider {
	return &fakeProvider{responses: responses}
}

func (p *fakeProvider) next() (message.LlmResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return p.responses[i], err
}

func (p *fakeProvider) Chat(ctx context.Context, messages []message.Message, opts message.GenerationOptions) (*message.LlmResponse, error) {
	resp, err := p.next()
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *fakeProvider) Stream(ctx context.Context, messages []message.Message, opts message.GenerationOptions) (<-chan message.LlmResponse, <-chan error) {
	deltas := make(chan message.LlmResponse, 1)
	errCh := make(chan error, 1)
	resp, err := p.next()
	if err != nil {
		close(deltas)
		errCh <- err
		close(errCh)
		return deltas, errCh
	}
	deltas <- resp
	close(deltas)
	close(errCh)
	return deltas, errCh
}

func (p *fakeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
