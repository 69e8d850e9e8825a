package segment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishgancheg/wiki-rag/ai/mock"
	"github.com/mishgancheg/wiki-rag/core"
)

func testDoc(content string) core.Document {
	return core.Document{
		ID:      "page-1",
		Title:   "Test Page",
		URL:     "https://wiki.example.com/page-1",
		Content: content,
	}
}

func TestSegmentEmptyContent(t *testing.T) {
	splitter := mock.NewMockChunkSplitter()
	s := New(splitter)

	result, err := s.Segment(context.Background(), testDoc("   \n  "))
	require.NoError(t, err)

	assert.Empty(t, result.Fragments)
	assert.Equal(t, 0, splitter.CallCount())
}

func TestSegmentShortContentSkipsModel(t *testing.T) {
	splitter := mock.NewMockChunkSplitter()
	s := New(splitter)

	result, err := s.Segment(context.Background(), testDoc("short note"))
	require.NoError(t, err)

	require.Len(t, result.Fragments, 1)
	assert.Equal(t, "short note", result.Fragments[0].IndexText)
	assert.Equal(t, "Test Page\nhttps://wiki.example.com/page-1\n\nshort note",
		result.Fragments[0].DisplayText)
	assert.Equal(t, 0, splitter.CallCount())
	assert.False(t, result.Fallback)
}

func TestSegmentUsesModelChunks(t *testing.T) {
	splitter := mock.NewMockChunkSplitter()
	splitter.SplitChunksFunc = func(ctx context.Context, text string, maxChunkChars int) ([]string, core.Usage, error) {
		return []string{"first chunk", "second chunk"}, core.Usage{TotalTokens: 42}, nil
	}
	s := New(splitter)

	content := strings.Repeat("Informative sentence about the system. ", 10)
	result, err := s.Segment(context.Background(), testDoc(content))
	require.NoError(t, err)

	require.Len(t, result.Fragments, 2)
	assert.Equal(t, "first chunk", result.Fragments[0].IndexText)
	assert.Equal(t, "second chunk", result.Fragments[1].IndexText)
	assert.Equal(t, 42, result.Usage.TotalTokens)
	assert.False(t, result.Fallback)
	assert.Equal(t, 1, splitter.CallCount())
}

func TestSegmentFallbackOnModelError(t *testing.T) {
	splitter := mock.NewMockChunkSplitter()
	splitter.SplitChunksFunc = func(ctx context.Context, text string, maxChunkChars int) ([]string, core.Usage, error) {
		return nil, core.Usage{}, errors.New("model unavailable")
	}
	s := New(splitter)

	content := strings.Repeat("A sentence that should survive the fallback. ", 5)
	result, err := s.Segment(context.Background(), testDoc(content))
	require.NoError(t, err)

	require.NotEmpty(t, result.Fragments)
	assert.True(t, result.Fallback)
}

func TestSegmentFallbackOnEmptyChunks(t *testing.T) {
	splitter := mock.NewMockChunkSplitter()
	splitter.SplitChunksFunc = func(ctx context.Context, text string, maxChunkChars int) ([]string, core.Usage, error) {
		return []string{}, core.Usage{}, nil
	}
	s := New(splitter)

	content := strings.Repeat("Another sentence with enough length to split. ", 5)
	result, err := s.Segment(context.Background(), testDoc(content))
	require.NoError(t, err)

	require.NotEmpty(t, result.Fragments)
	assert.True(t, result.Fallback)
}

func TestDisplayText(t *testing.T) {
	assert.Equal(t, "text", DisplayText("", "", "text"))
	assert.Equal(t, "Title\n\ntext", DisplayText("Title", "", "text"))
	assert.Equal(t, "https://x\n\ntext", DisplayText("", "https://x", "text"))
	assert.Equal(t, "Title\nhttps://x\n\ntext", DisplayText("Title", "https://x", "text"))
}

func TestSplitRespectsBudget(t *testing.T) {
	paragraphs := []string{
		strings.Repeat("alpha ", 20),
		strings.Repeat("beta ", 20),
		strings.Repeat("gamma ", 20),
	}
	text := strings.Join(paragraphs, "\n\n")

	fragments := Split(text, 250)
	require.NotEmpty(t, fragments)
	for _, f := range fragments {
		assert.LessOrEqual(t, utf8.RuneCountInString(f), 250)
	}
}

func TestSplitOversizedParagraphUsesSentences(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("This sentence has a fixed shape. ", 20))

	fragments := Split(text, 100)
	require.Greater(t, len(fragments), 1)
	for _, f := range fragments {
		assert.LessOrEqual(t, utf8.RuneCountInString(f), 100)
	}
}

func TestSplitUnsplittableSentenceKeptWhole(t *testing.T) {
	long := strings.Repeat("x", 300)

	fragments := Split(long, 100)
	require.Len(t, fragments, 1)
	assert.Equal(t, long, fragments[0])
}

func TestSplitReconstructsInput(t *testing.T) {
	text := "First paragraph with words.\n\nSecond paragraph here. It has two sentences.\n\nThird one."

	fragments := Split(text, 40)
	require.NotEmpty(t, fragments)

	got := strings.Fields(strings.Join(fragments, " "))
	want := strings.Fields(text)
	assert.Equal(t, want, got)
}

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", 100))
	assert.Nil(t, Split("  \n\n  ", 100))
}
