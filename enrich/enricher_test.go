package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishgancheg/wiki-rag/ai/mock"
	"github.com/mishgancheg/wiki-rag/core"
)

func TestEnrichReturnsValidQuestions(t *testing.T) {
	writer := mock.NewMockQuestionWriter()
	writer.WriteQuestionsFunc = func(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
		return []string{
			"  How does the pipeline work?  ",
			"What is a fragment?",
		}, core.Usage{TotalTokens: 10}, nil
	}
	e := New(writer)

	result, err := e.Enrich(context.Background(), "Some fragment about the pipeline.", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"How does the pipeline work?", "What is a fragment?"}, result.Questions)
	assert.Equal(t, 10, result.Usage.TotalTokens)
	assert.False(t, result.Degraded)
}

func TestEnrichDegradesOnError(t *testing.T) {
	writer := mock.NewMockQuestionWriter()
	writer.WriteQuestionsFunc = func(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
		return nil, core.Usage{}, errors.New("model unavailable")
	}
	e := New(writer)

	result, err := e.Enrich(context.Background(), "fragment text", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"fragment text"}, result.Questions)
	assert.True(t, result.Degraded)
}

func TestEnrichDegradesWhenAllQuestionsInvalid(t *testing.T) {
	writer := mock.NewMockQuestionWriter()
	writer.WriteQuestionsFunc = func(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
		return []string{"", "  ", "short"}, core.Usage{}, nil
	}
	e := New(writer)

	result, err := e.Enrich(context.Background(), "fragment text", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"fragment text"}, result.Questions)
	assert.True(t, result.Degraded)
}

func TestEnrichDropsShortQuestions(t *testing.T) {
	writer := mock.NewMockQuestionWriter()
	writer.WriteQuestionsFunc = func(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
		return []string{"ok?", "What is the retention policy?"}, core.Usage{}, nil
	}
	e := New(writer)

	result, err := e.Enrich(context.Background(), "fragment text", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"What is the retention policy?"}, result.Questions)
	assert.False(t, result.Degraded)
}

func TestEnrichTruncatesToMaximum(t *testing.T) {
	writer := mock.NewMockQuestionWriter()
	writer.WriteQuestionsFunc = func(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
		questions := make([]string, 30)
		for i := range questions {
			questions[i] = "A sufficiently long generated question?"
		}
		return questions, core.Usage{}, nil
	}
	e := New(writer, WithQuestionRange(3, 5))

	result, err := e.Enrich(context.Background(), "fragment text", "")
	require.NoError(t, err)

	assert.Len(t, result.Questions, 5)
}

func TestEnrichEmptyFragment(t *testing.T) {
	writer := mock.NewMockQuestionWriter()
	e := New(writer)

	result, err := e.Enrich(context.Background(), "   ", "context")
	require.NoError(t, err)

	assert.Empty(t, result.Questions)
	assert.Equal(t, 0, writer.CallCount())
}

func TestQuestionCountScalesWithLength(t *testing.T) {
	e := New(mock.NewMockQuestionWriter())

	assert.Equal(t, DefaultMinQuestions, e.questionCount("tiny"))
	assert.Equal(t, 6, e.questionCount(strings.Repeat("x", 6*charsPerQuestion)))
	assert.Equal(t, DefaultMaxQuestions, e.questionCount(strings.Repeat("x", 100*charsPerQuestion)))
}

func TestEnrichRequestedCountPassedToWriter(t *testing.T) {
	var gotCount int
	writer := mock.NewMockQuestionWriter()
	writer.WriteQuestionsFunc = func(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
		gotCount = count
		return []string{"A sufficiently long question?"}, core.Usage{}, nil
	}
	e := New(writer)

	_, err := e.Enrich(context.Background(), strings.Repeat("x", 5*charsPerQuestion), "")
	require.NoError(t, err)

	assert.Equal(t, 5, gotCount)
}
