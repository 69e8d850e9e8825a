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

// Package embed turns text batches into embedding vectors under a
// per-request token budget.
//
// The batcher greedily packs inputs into request groups whose estimated
// token total stays under the budget, sends one embedding request per
// group, and preserves input order in the output. A group failure marks
// only that group's indices as failed, with nil placeholder vectors
// keeping index alignment. There is no per-item retry at this layer.
package embed

import (
	"context"
	"log/slog"
	"time"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/core"
)

const (
	// DefaultTokenBudget is the estimated-token cap per embedding request.
	DefaultTokenBudget = 8000

	// DefaultBatchDelay is the pause between consecutive requests.
	DefaultBatchDelay = 100 * time.Millisecond

	// encodingName is the tokenizer used for estimation.
	encodingName = "cl100k_base"
)

// BatchResult is the order-preserving outcome of EmbedBatch: Vectors[i]
// corresponds to texts[i], nil where the owning group failed.
type BatchResult struct {
	Vectors [][]float32
	Failed  []int
	Usage   core.Usage
}

// Batcher packs texts into budgeted embedding requests.
type Batcher struct {
	embedder     ai.Embedder
	tokenBudget  int
	delay        time.Duration
	pricePerMTok float64
	estimate     func(string) int
	logger       *slog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithTokenBudget sets the per-request estimated-token cap.
func WithTokenBudget(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.tokenBudget = n
		}
	}
}

// WithBatchDelay sets the inter-request pause.
func WithBatchDelay(d time.Duration) Option {
	return func(b *Batcher) {
		if d >= 0 {
			b.delay = d
		}
	}
}

// WithPricing sets the embedding price per million tokens, used for the
// estimated cost in Usage.
func WithPricing(perMTok float64) Option {
	return func(b *Batcher) {
		if perMTok >= 0 {
			b.pricePerMTok = perMTok
		}
	}
}

// WithTokenEstimator overrides the token estimation function.
func WithTokenEstimator(fn func(string) int) Option {
	return func(b *Batcher) {
		if fn != nil {
			b.estimate = fn
		}
	}
}

// New creates a Batcher. Token estimation uses the cl100k_base tokenizer
// when available and a character-count heuristic otherwise.
func New(embedder ai.Embedder, opts ...Option) *Batcher {
	b := &Batcher{
		embedder:    embedder,
		tokenBudget: DefaultTokenBudget,
		delay:       DefaultBatchDelay,
		logger:      slog.Default().With("component", "embed-batcher"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.estimate == nil {
		if enc, err := tiktoken.GetEncoding(encodingName); err == nil {
			b.estimate = func(text string) int {
				return len(enc.Encode(text, nil, nil))
			}
		} else {
			b.logger.Debug("tokenizer unavailable, using character heuristic", "error", err)
			b.estimate = func(text string) int {
				return len(text)/4 + 1
			}
		}
	}
	return b
}

// requestGroup is one packed embedding request.
type requestGroup struct {
	indices []int
	texts   []string
	tokens  int
}

// EmbedBatch embeds the texts in budgeted groups. The result always has
// len(texts) vectors; failed groups leave nil placeholders and their
// indices in Failed.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) *BatchResult {
	result := &BatchResult{Vectors: make([][]float32, len(texts))}
	if len(texts) == 0 {
		return result
	}

	groups := b.pack(texts)
	b.logger.Debug("packed embedding requests", "texts", len(texts), "groups", len(groups))

	for i, group := range groups {
		if i > 0 && b.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(b.delay):
			}
		}
		// Cancellation fails all remaining groups, regardless of the
		// configured delay.
		if err := ctx.Err(); err != nil {
			b.failRemaining(result, groups[i:], err)
			break
		}

		vectors, err := b.embedder.EmbedTexts(ctx, group.texts)
		if err != nil || len(vectors) != len(group.texts) {
			b.logger.Warn("embedding request failed",
				"group_size", len(group.texts), "error", err)
			result.Failed = append(result.Failed, group.indices...)
			continue
		}
		for j, idx := range group.indices {
			result.Vectors[idx] = vectors[j]
		}
		result.Usage.PromptTokens += group.tokens
		result.Usage.TotalTokens += group.tokens
	}

	result.Usage.Cost = float64(result.Usage.TotalTokens) * b.pricePerMTok / 1e6
	return result
}

// pack greedily fills groups under the token budget; an input whose own
// estimate exceeds the budget is sent alone rather than dropped.
func (b *Batcher) pack(texts []string) []requestGroup {
	var groups []requestGroup
	var cur requestGroup
	flush := func() {
		if len(cur.indices) > 0 {
			groups = append(groups, cur)
			cur = requestGroup{}
		}
	}

	for i, text := range texts {
		tokens := b.estimate(text)
		if tokens > b.tokenBudget {
			flush()
			groups = append(groups, requestGroup{
				indices: []int{i},
				texts:   []string{text},
				tokens:  tokens,
			})
			continue
		}
		if cur.tokens+tokens > b.tokenBudget {
			flush()
		}
		cur.indices = append(cur.indices, i)
		cur.texts = append(cur.texts, text)
		cur.tokens += tokens
	}
	flush()
	return groups
}

func (b *Batcher) failRemaining(result *BatchResult, groups []requestGroup, err error) {
	b.logger.Warn("aborting remaining embedding requests", "groups", len(groups), "error", err)
	for _, group := range groups {
		result.Failed = append(result.Failed, group.indices...)
	}
}
