package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/mishgancheg/wiki-rag/core"
)

// MockChunkSplitter is a test double for ai.ChunkSplitter. Safe for
// concurrent use, matching the interface contract.
type MockChunkSplitter struct {
	// SplitChunksFunc is called by SplitChunks if set.
	// If nil, splits on blank lines.
	SplitChunksFunc func(ctx context.Context, text string, maxChunkChars int) ([]string, core.Usage, error)

	callCount atomic.Int64
}

// NewMockChunkSplitter creates a mock splitter with default blank-line
// splitting. Returns the concrete type to allow test assertions.
func NewMockChunkSplitter() *MockChunkSplitter {
	return &MockChunkSplitter{}
}

// SplitChunks splits text on blank-line boundaries unless a custom
// function is injected.
func (m *MockChunkSplitter) SplitChunks(ctx context.Context, text string, maxChunkChars int) ([]string, core.Usage, error) {
	m.callCount.Add(1)

	if m.SplitChunksFunc != nil {
		return m.SplitChunksFunc(ctx, text, maxChunkChars)
	}

	var chunks []string
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks, core.Usage{}, nil
}

// CallCount returns the number of times SplitChunks was called.
func (m *MockChunkSplitter) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockChunkSplitter) Reset() {
	m.callCount.Store(0)
	m.SplitChunksFunc = nil
}
