package mock

import "github.com/mishgancheg/wiki-rag/ai"

// MockProvider is a test double for ai.Provider aggregating the mock
// services.
type MockProvider struct {
	embedder *MockEmbedder
	splitter *MockChunkSplitter
	writer   *MockQuestionWriter
}

// NewMockProvider creates a provider backed by default mock services.
func NewMockProvider() ai.Provider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		splitter: NewMockChunkSplitter(),
		writer:   NewMockQuestionWriter(),
	}
}

// Embedder returns the mock embedding service.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// ChunkSplitter returns the mock chunk splitting service.
func (p *MockProvider) ChunkSplitter() ai.ChunkSplitter {
	return p.splitter
}

// QuestionWriter returns the mock question generation service.
func (p *MockProvider) QuestionWriter() ai.QuestionWriter {
	return p.writer
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the concrete mock embedder for assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockChunkSplitter returns the concrete mock splitter for assertions.
func (p *MockProvider) GetMockChunkSplitter() *MockChunkSplitter {
	return p.splitter
}

// GetMockQuestionWriter returns the concrete mock writer for assertions.
func (p *MockProvider) GetMockQuestionWriter() *MockQuestionWriter {
	return p.writer
}
