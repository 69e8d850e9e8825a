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

// Package segment splits cleaned document content into cohesive fragments.
//
// The primary path is a structured model call through ai.ChunkSplitter.
// Any transport, parse, or validation failure falls back to a deterministic
// paragraph/sentence splitter that never drops input.
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/core"
)

const (
	// DefaultChunkChars is the character budget per fragment.
	DefaultChunkChars = 2000

	// DefaultMinContentChars is the minimum content length below which the
	// whole input becomes a single fragment without a model call.
	DefaultMinContentChars = 50
)

// Fragment is one segmented unit of a document. DisplayText carries the
// provenance header for presentation; IndexText is the unmodified fragment
// used for embedding.
type Fragment struct {
	DisplayText string
	IndexText   string
}

// Result is the outcome of segmenting one document.
type Result struct {
	Fragments []Fragment
	Usage     core.Usage

	// Fallback is true when the deterministic splitter produced the
	// fragments instead of the model.
	Fallback bool
}

// Segmenter turns cleaned markup into ordered fragments.
type Segmenter struct {
	splitter        ai.ChunkSplitter
	maxChunkChars   int
	minContentChars int
	logger          *slog.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithChunkChars sets the per-fragment character budget.
func WithChunkChars(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.maxChunkChars = n
		}
	}
}

// WithMinContentChars sets the single-fragment short-circuit threshold.
func WithMinContentChars(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.minContentChars = n
		}
	}
}

// New creates a Segmenter backed by the given splitter.
func New(splitter ai.ChunkSplitter, opts ...Option) *Segmenter {
	s := &Segmenter{
		splitter:        splitter,
		maxChunkChars:   DefaultChunkChars,
		minContentChars: DefaultMinContentChars,
		logger:          slog.Default().With("component", "segmenter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment splits the document's cleaned content into fragments. Zero
// fragments for empty content is a valid outcome. Model failures are
// absorbed by the deterministic fallback; Segment itself does not fail.
func (s *Segmenter) Segment(ctx context.Context, doc core.Document) (*Result, error) {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return &Result{}, nil
	}

	if utf8.RuneCountInString(content) < s.minContentChars {
		s.logger.Debug("content below minimum length, single fragment",
			"document_id", doc.ID, "chars", utf8.RuneCountInString(content))
		return &Result{Fragments: s.buildFragments(doc, []string{content})}, nil
	}

	chunks, usage, err := s.splitter.SplitChunks(ctx, content, s.maxChunkChars)
	if err != nil || len(chunks) == 0 {
		s.logger.Warn("model split failed, using deterministic fallback",
			"document_id", doc.ID, "error", err)
		return &Result{
			Fragments: s.buildFragments(doc, Split(content, s.maxChunkChars)),
			Usage:     usage,
			Fallback:  true,
		}, nil
	}

	return &Result{Fragments: s.buildFragments(doc, chunks), Usage: usage}, nil
}

func (s *Segmenter) buildFragments(doc core.Document, texts []string) []Fragment {
	fragments := make([]Fragment, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fragments = append(fragments, Fragment{
			DisplayText: DisplayText(doc.Title, doc.URL, text),
			IndexText:   text,
		})
	}
	return fragments
}

// DisplayText prepends the document provenance header to a fragment.
func DisplayText(title, url, fragment string) string {
	switch {
	case title == "" && url == "":
		return fragment
	case url == "":
		return fmt.Sprintf("%s\n\n%s", title, fragment)
	case title == "":
		return fmt.Sprintf("%s\n\n%s", url, fragment)
	default:
		return fmt.Sprintf("%s\n%s\n\n%s", title, url, fragment)
	}
}
