package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChunkSplitter implements ai.ChunkSplitter using OpenAI-compatible chat
// APIs with JSON-mode structured output.
type ChunkSplitter struct {
	client llms.Model
	config *ai.Config
	logger *slog.Logger
}

// chunkPayload is the structure expected from the model.
type chunkPayload struct {
	Chunks []string `json:"chunks"`
}

// newChunkSplitter is an internal constructor that returns the concrete
// type. Used by Provider to manage the instance.
func newChunkSplitter(config *ai.Config) (*ChunkSplitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &ChunkSplitter{
		client: client,
		config: config,
		logger: slog.Default().With("component", "openai-splitter"),
	}, nil
}

// NewChunkSplitter creates a new chunk splitter using the provided
// configuration.
//
// Returns ai.ChunkSplitter interface to enforce abstraction.
func NewChunkSplitter(config *ai.Config) (ai.ChunkSplitter, error) {
	return newChunkSplitter(config)
}

// SplitChunks asks the model to split text into self-contained chunks of at
// most maxChunkChars characters. The response must parse as an object with
// a non-empty "chunks" array; anything else is returned as an error so the
// caller can apply its deterministic fallback.
func (s *ChunkSplitter) SplitChunks(ctx context.Context, text string, maxChunkChars int) ([]string, core.Usage, error) {
	var usage core.Usage

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildChunkPrompt(maxChunkChars))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		s.logger.Error("chunk split request failed", "err", err)
		return nil, usage, err
	}

	if len(response.Choices) < 1 {
		return nil, usage, fmt.Errorf("chunk split: no choices returned from model")
	}

	choice := response.Choices[0]
	usage = usageFromChoice(choice, s.config)

	responseText := repairJSON(stripFences(choice.Content))

	var payload chunkPayload
	if err := json.Unmarshal([]byte(responseText), &payload); err != nil {
		s.logger.Warn("error parsing splitter response", "err", err)
		return nil, usage, fmt.Errorf("chunk split: parsing model response: %w", err)
	}

	chunks := make([]string, 0, len(payload.Chunks))
	for _, chunk := range payload.Chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return nil, usage, fmt.Errorf("chunk split: model returned no usable chunks")
	}

	s.logger.Debug("split content into chunks", "chunks", len(chunks), "inputLength", len(text))
	return chunks, usage, nil
}
