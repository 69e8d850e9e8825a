package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishgancheg/wiki-rag/ai/mock"
	"github.com/mishgancheg/wiki-rag/core"
	"github.com/mishgancheg/wiki-rag/storage"
)

// testStore is a canned-response storage.Store for engine tests.
type testStore struct {
	questionHits []storage.QuestionHit
	fragmentHits []storage.FragmentHit
	queryErr     error
	calls        int
}

func (s *testStore) InsertFragment(ctx context.Context, fragment *core.Fragment) (string, error) {
	return "", nil
}

func (s *testStore) InsertQuestion(ctx context.Context, question *core.Question) (string, error) {
	return "", nil
}

func (s *testStore) DeleteByDocumentID(ctx context.Context, documentID string) error { return nil }

func (s *testStore) NearestFragments(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.FragmentHit, error) {
	s.calls++
	return s.fragmentHits, s.queryErr
}

func (s *testStore) NearestQuestions(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.QuestionHit, error) {
	s.calls++
	return s.questionHits, s.queryErr
}

func (s *testStore) ListIndexedDocumentIDs(ctx context.Context, candidateIDs []string) ([]string, error) {
	return nil, nil
}

func (s *testStore) WithTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	return fn(s)
}

func (s *testStore) Close() error { return nil }

func TestSearchValidation(t *testing.T) {
	store := &testStore{}
	embedder := mock.NewMockEmbedder()
	e := New(embedder, store)
	ctx := context.Background()

	_, err := e.Search(ctx, "   ", 0.3, 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = e.Search(ctx, "query", -0.1, 10)
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = e.Search(ctx, "query", 1.5, 10)
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = e.Search(ctx, "query", 0.3, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = e.Search(ctx, "query", 0.3, 101)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	assert.Equal(t, 0, embedder.CallCount(), "validation errors must precede external calls")
	assert.Equal(t, 0, store.calls)
}

func TestSearchMergesAndDedupes(t *testing.T) {
	store := &testStore{
		questionHits: []storage.QuestionHit{
			{FragmentID: "frag-1", DocumentID: "doc-1", DisplayText: "one", QuestionText: "How?", Distance: 0.10},
			{FragmentID: "frag-2", DocumentID: "doc-1", DisplayText: "two", QuestionText: "Why?", Distance: 0.30},
		},
		fragmentHits: []storage.FragmentHit{
			{FragmentID: "frag-1", DocumentID: "doc-1", DisplayText: "one", Distance: 0.20},
			{FragmentID: "frag-3", DocumentID: "doc-2", DisplayText: "three", Distance: 0.15},
		},
	}
	e := New(mock.NewMockEmbedder(), store)

	results, err := e.Search(context.Background(), "query", 0.5, 10)
	require.NoError(t, err)

	require.Len(t, results, 3)
	// frag-1 won through its question (0.10 < 0.20).
	assert.Equal(t, "frag-1", results[0].FragmentID)
	assert.Equal(t, 0.10, results[0].Distance)
	assert.Equal(t, "How?", results[0].MatchedQuestion)
	// frag-3 came from the fragment collection only.
	assert.Equal(t, "frag-3", results[1].FragmentID)
	assert.Empty(t, results[1].MatchedQuestion)
	assert.Equal(t, "frag-2", results[2].FragmentID)
}

func TestSearchFragmentWinClearsMatchedQuestion(t *testing.T) {
	store := &testStore{
		questionHits: []storage.QuestionHit{
			{FragmentID: "frag-1", DocumentID: "doc-1", DisplayText: "one", QuestionText: "How?", Distance: 0.25},
		},
		fragmentHits: []storage.FragmentHit{
			{FragmentID: "frag-1", DocumentID: "doc-1", DisplayText: "one", Distance: 0.05},
		},
	}
	e := New(mock.NewMockEmbedder(), store)

	results, err := e.Search(context.Background(), "query", 0.5, 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, 0.05, results[0].Distance)
	assert.Empty(t, results[0].MatchedQuestion)
}

func TestSearchTruncatesToLimit(t *testing.T) {
	store := &testStore{
		fragmentHits: []storage.FragmentHit{
			{FragmentID: "frag-1", Distance: 0.1},
			{FragmentID: "frag-2", Distance: 0.2},
			{FragmentID: "frag-3", Distance: 0.3},
		},
	}
	e := New(mock.NewMockEmbedder(), store)

	results, err := e.Search(context.Background(), "query", 0.5, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "frag-1", results[0].FragmentID)
	assert.Equal(t, "frag-2", results[1].FragmentID)
}

func TestSearchTieBreaksOnFragmentID(t *testing.T) {
	store := &testStore{
		fragmentHits: []storage.FragmentHit{
			{FragmentID: "frag-b", Distance: 0.2},
			{FragmentID: "frag-a", Distance: 0.2},
		},
	}
	e := New(mock.NewMockEmbedder(), store)

	results, err := e.Search(context.Background(), "query", 0.5, 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "frag-a", results[0].FragmentID)
	assert.Equal(t, "frag-b", results[1].FragmentID)
}

func TestSearchEmptyResultIsNotError(t *testing.T) {
	e := New(mock.NewMockEmbedder(), &testStore{})

	results, err := e.Search(context.Background(), "query", 0.01, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchStoreErrorPropagates(t *testing.T) {
	wantErr := errors.New("store down")
	e := New(mock.NewMockEmbedder(), &testStore{queryErr: wantErr})

	_, err := e.Search(context.Background(), "query", 0.5, 10)
	assert.ErrorIs(t, err, wantErr)
}
