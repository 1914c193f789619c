package llm

import (
	"context"
	"sync"
)

// MockModel returns scripted output and records the prompts it receives.
type MockModel struct {
	// Response is returned by Generate.
	Response string
	// Tokens are streamed in order by Stream.
	Tokens []string
	// Err, when set, is returned by Generate and Stream.
	Err error
	// StreamErr, when set, is sent after the tokens.
	StreamErr error

	mu      sync.Mutex
	prompts []string
}

// Generate records prompt and returns Response.
func (m *MockModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.record(prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Stream records prompt and sends Tokens, then StreamErr if set.
func (m *MockModel) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	m.record(prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	chunks := make(chan Chunk)
	go func() {
		defer close(chunks)
		for _, tok := range m.Tokens {
			select {
			case chunks <- Chunk{Text: tok}:
			case <-ctx.Done():
				return
			}
		}
		if m.StreamErr != nil {
			select {
			case chunks <- Chunk{Err: m.StreamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return chunks, nil
}

// Prompts returns the prompts received so far.
func (m *MockModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockModel) record(prompt string) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
}
