// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/clewhq/clew/internal/provider"
)

// MockClient is a configurable test double for provider.Client. Set
// StreamFunc to control behavior, or use Script for the common case of a
// fixed chunk sequence per call. Safe for concurrent use.
type MockClient struct {
	StreamFunc func(ctx context.Context, parts []provider.Part) (<-chan provider.Chunk, error)

	// Script, when StreamFunc is nil, holds one chunk sequence per
	// SendMessageStream call, consumed in order. Calls past the end of
	// the script return an empty, immediately closed stream.
	Script [][]provider.Chunk

	mu    sync.Mutex
	calls int
	// Inputs records the parts passed to each call.
	Inputs [][]provider.Part
}

// SendMessageStream implements provider.Client.
func (m *MockClient) SendMessageStream(ctx context.Context, parts []provider.Part) (<-chan provider.Chunk, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.Inputs = append(m.Inputs, parts)
	m.mu.Unlock()

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, parts)
	}

	var chunks []provider.Chunk
	if call < len(m.Script) {
		chunks = m.Script[call]
	}

	ch := make(chan provider.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

// Calls returns how many times SendMessageStream has been invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ provider.Client = (*MockClient)(nil)
