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

// Package search implements the retrieval engine: dual-source nearest-
// neighbor search over the fragment and question collections, merged into
// one ranked result set.
//
// The threshold is a maximum cosine distance in [0, 1]; rows qualify when
// distance <= threshold. The same convention applies to both collections
// and to the HTTP contract.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/core"
	"github.com/mishgancheg/wiki-rag/storage"
)

const (
	// DefaultThreshold is the maximum cosine distance when the caller
	// does not supply one.
	DefaultThreshold = 0.35

	// DefaultLimit is the result cap when the caller does not supply one.
	DefaultLimit = 10

	// MinLimit and MaxLimit bound the accepted limit values.
	MinLimit = 1
	MaxLimit = 100
)

// Engine answers queries against the indexed fragments and questions.
type Engine struct {
	embedder ai.Embedder
	store    storage.Store
	logger   *slog.Logger
}

// New creates an Engine over the given embedder and store.
func New(embedder ai.Embedder, store storage.Store) *Engine {
	return &Engine{
		embedder: embedder,
		store:    store,
		logger:   slog.Default().With("component", "search"),
	}
}

// Search embeds the query, runs both nearest-neighbor queries, and merges
// the results keeping the best distance per fragment. Validation errors
// are returned before any external call. An empty result set is a valid
// outcome, not an error.
func (e *Engine) Search(ctx context.Context, query string, threshold float64, limit int) ([]core.RankedFragment, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %g not in [0, 1]", ErrInvalidThreshold, threshold)
	}
	if limit < MinLimit || limit > MaxLimit {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidLimit, limit, MinLimit, MaxLimit)
	}

	vector, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	questionHits, err := e.store.NearestQuestions(ctx, vector, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("searching questions: %w", err)
	}
	fragmentHits, err := e.store.NearestFragments(ctx, vector, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("searching fragments: %w", err)
	}

	results := merge(questionHits, fragmentHits)
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].FragmentID < results[j].FragmentID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	e.logger.Debug("search completed",
		"question_hits", len(questionHits),
		"fragment_hits", len(fragmentHits),
		"results", len(results))
	return results, nil
}

// merge unions the two hit sets, keeping for each fragment the single row
// with the lowest distance. Question wins retain the matching question
// text; fragment wins leave it empty.
func merge(questionHits []storage.QuestionHit, fragmentHits []storage.FragmentHit) []core.RankedFragment {
	best := make(map[string]core.RankedFragment)

	for _, hit := range questionHits {
		current, seen := best[hit.FragmentID]
		if !seen || hit.Distance < current.Distance {
			best[hit.FragmentID] = core.RankedFragment{
				FragmentID:      hit.FragmentID,
				DocumentID:      hit.DocumentID,
				DisplayText:     hit.DisplayText,
				MatchedQuestion: hit.QuestionText,
				Distance:        hit.Distance,
			}
		}
	}
	for _, hit := range fragmentHits {
		current, seen := best[hit.FragmentID]
		if !seen || hit.Distance < current.Distance {
			best[hit.FragmentID] = core.RankedFragment{
				FragmentID:  hit.FragmentID,
				DocumentID:  hit.DocumentID,
				DisplayText: hit.DisplayText,
				Distance:    hit.Distance,
			}
		}
	}

	results := make([]core.RankedFragment, 0, len(best))
	for _, result := range best {
		results = append(results, result)
	}
	return results
}
