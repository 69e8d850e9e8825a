package ai

import (
	"context"

	"github.com/mishgancheg/wiki-rag/core"
)

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// single request. The returned slice contains embeddings in the same
	// order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkSplitter asks a language model to split cleaned page content into
// cohesive, self-contained chunks. Implementations must be thread-safe.
type ChunkSplitter interface {
	// SplitChunks splits text into chunks of at most maxChunkChars
	// characters each, preserving the original wording verbatim.
	// Returns an error on transport failure or when the model response
	// cannot be parsed into a non-empty chunk list; callers are expected
	// to fall back to a deterministic splitter.
	SplitChunks(ctx context.Context, text string, maxChunkChars int) ([]string, core.Usage, error)
}

// QuestionWriter asks a language model to generate natural-language
// questions a fragment of content would answer. Implementations must be
// thread-safe.
type QuestionWriter interface {
	// WriteQuestions generates up to count questions for the fragment.
	// docContext optionally carries surrounding document content to widen
	// the question space. Returns an error on transport or parse failure;
	// callers degrade to using the fragment text itself.
	WriteQuestions(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages the Embedder,
// ChunkSplitter, and QuestionWriter instances, ensuring they share
// configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ChunkSplitter returns the chunk splitting service.
	ChunkSplitter() ChunkSplitter

	// QuestionWriter returns the question generation service.
	QuestionWriter() QuestionWriter

	// Close releases resources held by the provider and its services.
	Close() error
}
