package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishgancheg/wiki-rag/ai/mock"
	"github.com/mishgancheg/wiki-rag/core"
	"github.com/mishgancheg/wiki-rag/source"
	"github.com/mishgancheg/wiki-rag/storage"
)

// fakeSource serves canned pages.
type fakeSource struct {
	pages map[string]*source.Page
	fails map[string]error
}

func (f *fakeSource) ListSpaces(ctx context.Context) ([]source.Space, error) { return nil, nil }

func (f *fakeSource) ListRootPages(ctx context.Context, spaceKey string) ([]source.PageRef, error) {
	return nil, nil
}

func (f *fakeSource) ListChildren(ctx context.Context, parentID string) ([]source.PageRef, error) {
	return nil, nil
}

func (f *fakeSource) GetPageContent(ctx context.Context, id string) (*source.Page, error) {
	if err, ok := f.fails[id]; ok {
		return nil, err
	}
	page, ok := f.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %s not found", id)
	}
	return page, nil
}

// memStore is an in-memory storage.Store for coordinator tests.
type memStore struct {
	mu        sync.Mutex
	seq       int
	fragments map[string]core.Fragment
	questions map[string]core.Question
}

func newMemStore() *memStore {
	return &memStore{
		fragments: make(map[string]core.Fragment),
		questions: make(map[string]core.Question),
	}
}

func (m *memStore) InsertFragment(ctx context.Context, fragment *core.Fragment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("frag-%d", m.seq)
	stored := *fragment
	stored.ID = id
	m.fragments[id] = stored
	return id, nil
}

func (m *memStore) InsertQuestion(ctx context.Context, question *core.Question) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("ques-%d", m.seq)
	stored := *question
	stored.ID = id
	m.questions[id] = stored
	return id, nil
}

func (m *memStore) DeleteByDocumentID(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, fragment := range m.fragments {
		if fragment.DocumentID == documentID {
			delete(m.fragments, id)
		}
	}
	for id, question := range m.questions {
		if question.DocumentID == documentID {
			delete(m.questions, id)
		}
	}
	return nil
}

func (m *memStore) NearestFragments(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.FragmentHit, error) {
	return nil, nil
}

func (m *memStore) NearestQuestions(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.QuestionHit, error) {
	return nil, nil
}

func (m *memStore) ListIndexedDocumentIDs(ctx context.Context, candidateIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	indexed := make(map[string]bool)
	for _, fragment := range m.fragments {
		indexed[fragment.DocumentID] = true
	}
	var ids []string
	for _, id := range candidateIDs {
		if indexed[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	return fn(m)
}

func (m *memStore) Close() error { return nil }

func (m *memStore) fragmentsOf(documentID string) []core.Fragment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Fragment
	for _, fragment := range m.fragments {
		if fragment.DocumentID == documentID {
			out = append(out, fragment)
		}
	}
	return out
}

func (m *memStore) questionsOf(documentID string) []core.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Question
	for _, question := range m.questions {
		if question.DocumentID == documentID {
			out = append(out, question)
		}
	}
	return out
}

// recordingMonitor captures stage transitions for assertions.
type recordingMonitor struct {
	mu        sync.Mutex
	stages    map[string][]Stage
	failed    map[string]error
	completed map[string]core.IngestReport
}

func newRecordingMonitor() *recordingMonitor {
	return &recordingMonitor{
		stages:    make(map[string][]Stage),
		failed:    make(map[string]error),
		completed: make(map[string]core.IngestReport),
	}
}

func (r *recordingMonitor) StageChanged(documentID string, stage Stage, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[documentID] = append(r.stages[documentID], stage)
}

func (r *recordingMonitor) DocumentFailed(documentID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[documentID] = err
}

func (r *recordingMonitor) DocumentCompleted(documentID string, report core.IngestReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed[documentID] = report
}

func testPage(id string) *source.Page {
	body := strings.Repeat("A sentence describing the deployment procedure in detail. ", 5)
	return &source.Page{
		ID:    id,
		Title: "Deployment Guide",
		HTML:  "<p>" + strings.TrimSpace(body) + "</p>",
		URL:   "https://wiki.example.com/" + id,
	}
}

func newTestCoordinator(t *testing.T, src source.Source, store storage.Store, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithStagger(0)}, opts...)
	c, err := New(src, store, mock.NewMockProvider(), opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestIngestSingleDocument(t *testing.T) {
	store := newMemStore()
	monitor := newRecordingMonitor()
	src := &fakeSource{pages: map[string]*source.Page{"page-1": testPage("page-1")}}
	c := newTestCoordinator(t, src, store, WithMonitor(monitor))

	reports, err := c.IngestDocuments(context.Background(), []string{"page-1"})
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, "page-1", reports[0].DocumentID)
	assert.Equal(t, "Deployment Guide", reports[0].Title)
	assert.Equal(t, 1, reports[0].FragmentsSaved)
	assert.Equal(t, 3, reports[0].QuestionsSaved)

	fragments := store.fragmentsOf("page-1")
	require.Len(t, fragments, 1)
	assert.Contains(t, fragments[0].DisplayText, "Deployment Guide\nhttps://wiki.example.com/page-1\n\n")
	assert.NotNil(t, fragments[0].Embedding)

	questions := store.questionsOf("page-1")
	require.Len(t, questions, 3)
	for _, question := range questions {
		assert.Equal(t, fragments[0].ID, question.FragmentID)
		assert.NotNil(t, question.Embedding)
	}

	record, ok := c.Registry().Get("page-1")
	require.True(t, ok)
	assert.Equal(t, StageCompleted, record.Stage)
	assert.Equal(t, 100, record.Percent)
	assert.Equal(t, 1, record.FragmentsSaved)
	assert.Equal(t, 3, record.QuestionsSaved)

	assert.Equal(t, []Stage{
		StageQueued, StageFetching, StageCleaning, StageSegmenting,
		StageEnriching, StageEmbedding, StageSaving, StageCompleted,
	}, monitor.stages["page-1"])
}

func TestReindexLeavesNoStaleRows(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{pages: map[string]*source.Page{"page-1": testPage("page-1")}}
	c := newTestCoordinator(t, src, store)

	_, err := c.IngestDocuments(context.Background(), []string{"page-1"})
	require.NoError(t, err)
	first := store.fragmentsOf("page-1")

	_, err = c.IngestDocuments(context.Background(), []string{"page-1"})
	require.NoError(t, err)
	second := store.fragmentsOf("page-1")

	assert.Equal(t, len(first), len(second))
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID, "old rows must be replaced")
}

func TestFetchFailureIsolatedToDocument(t *testing.T) {
	store := newMemStore()
	monitor := newRecordingMonitor()
	src := &fakeSource{
		pages: map[string]*source.Page{"good": testPage("good")},
		fails: map[string]error{"bad": errors.New("source unreachable")},
	}
	c := newTestCoordinator(t, src, store, WithMonitor(monitor))

	reports, err := c.IngestDocuments(context.Background(), []string{"bad", "good"})
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, "good", reports[0].DocumentID)

	badRecord, ok := c.Registry().Get("bad")
	require.True(t, ok)
	assert.Equal(t, StageError, badRecord.Stage)
	assert.Contains(t, badRecord.Error, "source unreachable")
	require.Error(t, monitor.failed["bad"])

	goodRecord, ok := c.Registry().Get("good")
	require.True(t, ok)
	assert.Equal(t, StageCompleted, goodRecord.Stage)
}

func TestEmptyContentCompletesWithZeroCounts(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{pages: map[string]*source.Page{"empty": {
		ID: "empty", Title: "Empty", HTML: "", URL: "https://wiki.example.com/empty",
	}}}
	c := newTestCoordinator(t, src, store)

	reports, err := c.IngestDocuments(context.Background(), []string{"empty"})
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].FragmentsSaved)
	assert.Equal(t, 0, reports[0].QuestionsSaved)
	assert.Empty(t, store.fragmentsOf("empty"))

	record, ok := c.Registry().Get("empty")
	require.True(t, ok)
	assert.Equal(t, StageCompleted, record.Stage)
}

func TestEmbeddingFailureStoresRowsWithoutVectors(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{pages: map[string]*source.Page{"page-1": testPage("page-1")}}

	provider := mock.NewMockProvider().(*mock.MockProvider)
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}

	c, err := New(src, store, provider, WithStagger(0))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	reports, err := c.IngestDocuments(context.Background(), []string{"page-1"})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	fragments := store.fragmentsOf("page-1")
	require.Len(t, fragments, 1)
	assert.Nil(t, fragments[0].Embedding, "failed embedding stores a vector-less row")

	questions := store.questionsOf("page-1")
	require.Len(t, questions, 3)
	for _, question := range questions {
		assert.Nil(t, question.Embedding)
	}
}

func TestIngestMultipleBatches(t *testing.T) {
	store := newMemStore()
	pages := make(map[string]*source.Page)
	var ids []string
	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("page-%d", i)
		pages[id] = testPage(id)
		ids = append(ids, id)
	}
	src := &fakeSource{pages: pages}
	c := newTestCoordinator(t, src, store, WithBatchSize(3))

	reports, err := c.IngestDocuments(context.Background(), ids)
	require.NoError(t, err)

	assert.Len(t, reports, 7)
	summary := c.Registry().Snapshot()
	assert.Equal(t, 7, summary.Completed)
	assert.Zero(t, summary.Errors)

	// Concurrent ingestion must not lose or cross-wire rows between
	// documents.
	for _, id := range ids {
		fragments := store.fragmentsOf(id)
		require.Len(t, fragments, 1, "document %s", id)
		assert.Contains(t, fragments[0].DisplayText, "https://wiki.example.com/"+id)

		questions := store.questionsOf(id)
		require.Len(t, questions, 3, "document %s", id)
		for _, question := range questions {
			assert.Equal(t, fragments[0].ID, question.FragmentID)
		}
	}
}

func TestRowsKeyedByRequestedPageID(t *testing.T) {
	store := newMemStore()
	page := testPage("canonical-9")
	src := &fakeSource{pages: map[string]*source.Page{"alias-1": page}}
	c := newTestCoordinator(t, src, store)

	reports, err := c.IngestDocuments(context.Background(), []string{"alias-1"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "alias-1", reports[0].DocumentID)

	require.Len(t, store.fragmentsOf("alias-1"), 1)
	assert.Empty(t, store.fragmentsOf("canonical-9"))

	record, ok := c.Registry().Get("alias-1")
	require.True(t, ok)
	assert.Equal(t, StageCompleted, record.Stage)
	assert.Equal(t, 1, record.FragmentsSaved)
}
