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

// QuestionWriter implements ai.QuestionWriter using OpenAI-compatible chat
// APIs with JSON-mode structured output.
type QuestionWriter struct {
	client llms.Model
	config *ai.Config
	logger *slog.Logger
}

// questionPayload is the structure expected from the model.
type questionPayload struct {
	Questions []string `json:"questions"`
}

// newQuestionWriter is an internal constructor that returns the concrete
// type. Used by Provider to manage the instance.
func newQuestionWriter(config *ai.Config) (*QuestionWriter, error) {
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

	return &QuestionWriter{
		client: client,
		config: config,
		logger: slog.Default().With("component", "openai-questions"),
	}, nil
}

// NewQuestionWriter creates a new question writer using the provided
// configuration.
//
// Returns ai.QuestionWriter interface to enforce abstraction.
func NewQuestionWriter(config *ai.Config) (ai.QuestionWriter, error) {
	return newQuestionWriter(config)
}

// WriteQuestions generates up to count retrieval questions for the
// fragment. Errors are returned as-is; the enrichment layer owns the
// degrade-to-fragment-text policy.
func (w *QuestionWriter) WriteQuestions(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
	var usage core.Usage

	userContent := fragment
	if docContext != "" {
		userContent = "Document context:\n" + docContext + "\n\nFragment:\n" + fragment
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildQuestionPrompt(count))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(userContent)},
		},
	}

	response, err := w.client.GenerateContent(ctx, content, llms.WithTemperature(0.2), llms.WithJSONMode())
	if err != nil {
		w.logger.Error("question generation request failed", "err", err)
		return nil, usage, err
	}

	if len(response.Choices) < 1 {
		return nil, usage, fmt.Errorf("question generation: no choices returned from model")
	}

	choice := response.Choices[0]
	usage = usageFromChoice(choice, w.config)

	responseText := repairJSON(stripFences(choice.Content))

	var payload questionPayload
	if err := json.Unmarshal([]byte(responseText), &payload); err != nil {
		w.logger.Warn("error parsing question response", "err", err)
		return nil, usage, fmt.Errorf("question generation: parsing model response: %w", err)
	}

	questions := make([]string, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		q = strings.TrimSpace(q)
		if q != "" {
			questions = append(questions, q)
		}
	}

	w.logger.Debug("generated questions", "questions", len(questions), "fragmentLength", len(fragment))
	return questions, usage, nil
}
