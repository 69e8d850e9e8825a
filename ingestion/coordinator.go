// Copyright 2025 The wiki-rag authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ingestion drives the per-document pipeline: fetch, normalize,
// segment, enrich, embed, save. Documents are processed in bounded-size
// batches with staggered starts; failures are isolated per document and
// reported through the status registry and progress monitor.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/core"
	"github.com/mishgancheg/wiki-rag/embed"
	"github.com/mishgancheg/wiki-rag/enrich"
	"github.com/mishgancheg/wiki-rag/normalize"
	"github.com/mishgancheg/wiki-rag/segment"
	"github.com/mishgancheg/wiki-rag/source"
	"github.com/mishgancheg/wiki-rag/storage"
)

const (
	// DefaultBatchSize is the number of documents started per batch.
	DefaultBatchSize = 5

	// DefaultStagger is the delay between document starts within a batch.
	DefaultStagger = 200 * time.Millisecond

	// DefaultDocConcurrency caps concurrently processed documents.
	DefaultDocConcurrency = 3

	// DefaultEnrichConcurrency caps concurrent fragment enrichments
	// within one document.
	DefaultEnrichConcurrency = 3
)

// Coordinator owns the document state machine and the multi-document
// driving loop.
type Coordinator struct {
	source            source.Source
	store             storage.Store
	normalizer        *normalize.Normalizer
	segmenter         *segment.Segmenter
	enricher          *enrich.Enricher
	batcher           *embed.Batcher
	registry          *Registry
	monitor           ProgressMonitor
	docPool           *ants.Pool
	enrichConcurrency int
	batchSize         int
	stagger           time.Duration
	logger            *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMonitor sets the progress observer.
func WithMonitor(m ProgressMonitor) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.monitor = m
		}
	}
}

// WithBatchSize sets the documents started per batch.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithStagger sets the delay between document starts within a batch.
func WithStagger(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.stagger = d
		}
	}
}

// WithEnrichConcurrency caps concurrent enrichments per document.
func WithEnrichConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.enrichConcurrency = n
		}
	}
}

// WithRetention sets the status registry retention limit.
func WithRetention(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.registry = NewRegistry(n)
		}
	}
}

// WithNormalizer replaces the default content normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.normalizer = n
		}
	}
}

// WithSegmenter replaces the default segmenter.
func WithSegmenter(s *segment.Segmenter) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.segmenter = s
		}
	}
}

// WithEnricher replaces the default enricher.
func WithEnricher(e *enrich.Enricher) Option {
	return func(c *Coordinator) {
		if e != nil {
			c.enricher = e
		}
	}
}

// WithBatcher replaces the default embedding batcher.
func WithBatcher(b *embed.Batcher) Option {
	return func(c *Coordinator) {
		if b != nil {
			c.batcher = b
		}
	}
}

// New creates a Coordinator wiring the pipeline components from the AI
// provider. Options may replace individual components.
func New(src source.Source, store storage.Store, provider ai.Provider, opts ...Option) (*Coordinator, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	c := &Coordinator{
		source:            src,
		store:             store,
		normalizer:        normalize.New(normalize.DefaultOptions()),
		segmenter:         segment.New(provider.ChunkSplitter()),
		enricher:          enrich.New(provider.QuestionWriter()),
		batcher:           embed.New(provider.Embedder()),
		registry:          NewRegistry(DefaultRetention),
		monitor:           &noopMonitor{},
		enrichConcurrency: DefaultEnrichConcurrency,
		batchSize:         DefaultBatchSize,
		stagger:           DefaultStagger,
		logger:            slog.Default().With("component", "coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}

	pool, err := ants.NewPool(DefaultDocConcurrency)
	if err != nil {
		return nil, err
	}
	c.docPool = pool
	return c, nil
}

// Registry exposes the status registry for the HTTP surface.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Close releases the worker pool.
func (c *Coordinator) Close() {
	if c.docPool != nil {
		c.docPool.Release()
	}
}

// IngestDocuments processes the documents in sequential batches; within a
// batch, documents start concurrently with a staggered delay. Per-document
// failures are reported through the registry and monitor and do not stop
// other documents. The returned error is non-nil only when the context is
// cancelled.
func (c *Coordinator) IngestDocuments(ctx context.Context, pageIDs []string) ([]core.IngestReport, error) {
	for _, id := range pageIDs {
		c.registry.Track(id, "")
		c.monitor.StageChanged(id, StageQueued, 0)
	}

	var (
		mu      sync.Mutex
		reports []core.IngestReport
	)
	for start := 0; start < len(pageIDs); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		end := start + c.batchSize
		if end > len(pageIDs) {
			end = len(pageIDs)
		}

		var wg sync.WaitGroup
		for i, id := range pageIDs[start:end] {
			id := id
			delay := time.Duration(i) * c.stagger
			wg.Add(1)
			err := c.docPool.Submit(func() {
				defer wg.Done()
				if delay > 0 {
					select {
					case <-ctx.Done():
						c.failDocument(id, ctx.Err())
						return
					case <-time.After(delay):
					}
				}
				report, err := c.ingestOne(ctx, id)
				if err != nil {
					c.failDocument(id, err)
					return
				}
				mu.Lock()
				reports = append(reports, report)
				mu.Unlock()
			})
			if err != nil {
				wg.Done()
				c.failDocument(id, err)
			}
		}
		wg.Wait()
	}
	return reports, nil
}

func (c *Coordinator) failDocument(id string, err error) {
	c.logger.Error("document ingestion failed", "document_id", id, "error", err)
	c.registry.SetError(id, err.Error())
	c.monitor.DocumentFailed(id, err)
}

func (c *Coordinator) setStage(documentID string, stage Stage) {
	percent := c.registry.SetStage(documentID, stage)
	c.monitor.StageChanged(documentID, stage, percent)
	c.logger.Debug("stage transition", "document_id", documentID, "stage", stage, "percent", percent)
}

// ingestOne runs the whole pipeline for a single document.
func (c *Coordinator) ingestOne(ctx context.Context, pageID string) (core.IngestReport, error) {
	started := time.Now()
	var usage core.Usage
	report := core.IngestReport{DocumentID: pageID}

	c.setStage(pageID, StageFetching)
	page, err := c.source.GetPageContent(ctx, pageID)
	if err != nil {
		return report, fmt.Errorf("fetching page %s: %w", pageID, err)
	}
	c.registry.SetTitle(pageID, page.Title)
	report.Title = page.Title

	c.setStage(pageID, StageCleaning)
	cleaned, err := c.normalizer.Normalize(page.HTML)
	if err != nil {
		return report, fmt.Errorf("normalizing page %s: %w", pageID, err)
	}

	// Rows, registry records and reports are all keyed by the requested
	// page ID, even if the source answers with a different canonical ID.
	// Re-indexing by the same requested ID then always replaces the same
	// rows.
	doc := core.Document{
		ID:           pageID,
		Title:        page.Title,
		URL:          page.URL,
		Content:      cleaned,
		LastModified: page.LastModified,
	}

	c.setStage(pageID, StageSegmenting)
	seg, err := c.segmenter.Segment(ctx, doc)
	if err != nil {
		return report, fmt.Errorf("segmenting page %s: %w", pageID, err)
	}
	usage.Add(seg.Usage)

	// Empty content is a valid outcome, not an error.
	if len(seg.Fragments) == 0 {
		c.registry.SetCounts(pageID, 0, 0)
		c.setStage(pageID, StageCompleted)
		report.Usage = usage
		report.Elapsed = time.Since(started)
		c.monitor.DocumentCompleted(pageID, report)
		return report, nil
	}

	c.setStage(pageID, StageEnriching)
	questionsPerFragment, err := c.enrichAll(ctx, doc, seg.Fragments, &usage)
	if err != nil {
		return report, fmt.Errorf("enriching page %s: %w", pageID, err)
	}

	c.setStage(pageID, StageEmbedding)
	indexTexts := make([]string, len(seg.Fragments))
	for i, fragment := range seg.Fragments {
		indexTexts[i] = fragment.IndexText
	}
	fragmentBatch := c.batcher.EmbedBatch(ctx, indexTexts)
	usage.Add(fragmentBatch.Usage)

	flatQuestions, questionCounts := flatten(questionsPerFragment)
	questionBatch := c.batcher.EmbedBatch(ctx, flatQuestions)
	usage.Add(questionBatch.Usage)

	c.setStage(pageID, StageSaving)
	var fragmentsSaved, questionsSaved int
	err = c.store.WithTransaction(ctx, func(tx storage.Store) error {
		if err := tx.DeleteByDocumentID(ctx, doc.ID); err != nil {
			return err
		}

		fragmentIDs := make([]string, len(seg.Fragments))
		for i, fragment := range seg.Fragments {
			id, err := tx.InsertFragment(ctx, &core.Fragment{
				DocumentID:  doc.ID,
				DisplayText: fragment.DisplayText,
				IndexText:   fragment.IndexText,
				Embedding:   fragmentBatch.Vectors[i],
			})
			if err != nil {
				return err
			}
			fragmentIDs[i] = id
			fragmentsSaved++
		}

		flat := 0
		for i, count := range questionCounts {
			for j := 0; j < count; j++ {
				_, err := tx.InsertQuestion(ctx, &core.Question{
					FragmentID: fragmentIDs[i],
					DocumentID: doc.ID,
					Text:       flatQuestions[flat],
					Embedding:  questionBatch.Vectors[flat],
				})
				if err != nil {
					return err
				}
				flat++
				questionsSaved++
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("saving page %s: %w", pageID, err)
	}

	c.registry.SetCounts(pageID, fragmentsSaved, questionsSaved)
	c.setStage(pageID, StageCompleted)

	report.FragmentsSaved = fragmentsSaved
	report.QuestionsSaved = questionsSaved
	report.Usage = usage
	report.Elapsed = time.Since(started)
	c.monitor.DocumentCompleted(pageID, report)

	c.logger.Info("document ingested",
		"document_id", pageID,
		"fragments", fragmentsSaved,
		"questions", questionsSaved,
		"elapsed", report.Elapsed,
		"usage", usage.String())
	return report, nil
}

// enrichAll generates questions for every fragment with bounded
// concurrency. Enrichment failures degrade inside the enricher; a pool
// submission failure degrades to the fragment text here.
func (c *Coordinator) enrichAll(ctx context.Context, doc core.Document, fragments []segment.Fragment, usage *core.Usage) ([][]string, error) {
	pool, err := ants.NewPool(c.enrichConcurrency)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	questions := make([][]string, len(fragments))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, fragment := range fragments {
		i, fragment := i, fragment
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			result, _ := c.enricher.Enrich(ctx, fragment.IndexText, doc.Title)
			mu.Lock()
			questions[i] = result.Questions
			usage.Add(result.Usage)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			questions[i] = []string{fragment.IndexText}
			mu.Unlock()
		}
	}
	wg.Wait()
	return questions, nil
}

// flatten joins the per-fragment question lists into one slice, keeping
// the per-fragment counts so results map back to their fragment.
func flatten(questionsPerFragment [][]string) ([]string, []int) {
	counts := make([]int, len(questionsPerFragment))
	var flat []string
	for i, questions := range questionsPerFragment {
		counts[i] = len(questions)
		flat = append(flat, questions...)
	}
	return flat, counts
}
