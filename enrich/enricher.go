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

// Package enrich generates retrieval questions for document fragments.
//
// Enrichment never fails a fragment: on any model or validation error the
// fragment text itself becomes the single question, so the fragment stays
// retrievable through the question collection.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/core"
)

const (
	// DefaultMinQuestions and DefaultMaxQuestions bound the target count.
	DefaultMinQuestions = 3
	DefaultMaxQuestions = 20

	// DefaultMinQuestionChars is the minimum accepted question length.
	DefaultMinQuestionChars = 8

	// charsPerQuestion scales the target count with fragment length.
	charsPerQuestion = 150
)

// Result is the outcome of enriching one fragment.
type Result struct {
	Questions []string
	Usage     core.Usage

	// Degraded is true when the fragment text replaced the generated
	// questions after a model or validation failure.
	Degraded bool
}

// Enricher produces search questions for fragments via ai.QuestionWriter.
type Enricher struct {
	writer           ai.QuestionWriter
	minQuestions     int
	maxQuestions     int
	minQuestionChars int
	logger           *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithQuestionRange bounds the target question count to [min, max].
func WithQuestionRange(min, max int) Option {
	return func(e *Enricher) {
		if min > 0 {
			e.minQuestions = min
		}
		if max >= e.minQuestions {
			e.maxQuestions = max
		}
	}
}

// WithMinQuestionChars sets the minimum accepted question length.
func WithMinQuestionChars(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.minQuestionChars = n
		}
	}
}

// New creates an Enricher backed by the given writer.
func New(writer ai.QuestionWriter, opts ...Option) *Enricher {
	e := &Enricher{
		writer:           writer,
		minQuestions:     DefaultMinQuestions,
		maxQuestions:     DefaultMaxQuestions,
		minQuestionChars: DefaultMinQuestionChars,
		logger:           slog.Default().With("component", "enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich generates questions for the fragment, using docContext to widen
// the model's view of the surrounding document. The returned error is
// always nil: failures degrade to the fragment text as the sole question.
func (e *Enricher) Enrich(ctx context.Context, fragmentText, docContext string) (*Result, error) {
	fragmentText = strings.TrimSpace(fragmentText)
	if fragmentText == "" {
		return &Result{}, nil
	}

	count := e.questionCount(fragmentText)
	raw, usage, err := e.writer.WriteQuestions(ctx, fragmentText, docContext, count)
	if err != nil {
		e.logger.Warn("question generation failed, degrading to fragment text", "error", err)
		return &Result{Questions: []string{fragmentText}, Usage: usage, Degraded: true}, nil
	}

	questions := e.validate(raw)
	if len(questions) == 0 {
		e.logger.Warn("no valid questions returned, degrading to fragment text",
			"raw_count", len(raw))
		return &Result{Questions: []string{fragmentText}, Usage: usage, Degraded: true}, nil
	}

	return &Result{Questions: questions, Usage: usage}, nil
}

// questionCount scales the target with fragment length within the
// configured bounds.
func (e *Enricher) questionCount(fragmentText string) int {
	count := utf8.RuneCountInString(fragmentText) / charsPerQuestion
	if count < e.minQuestions {
		return e.minQuestions
	}
	if count > e.maxQuestions {
		return e.maxQuestions
	}
	return count
}

// validate trims, drops too-short entries, and truncates to the maximum
// count.
func (e *Enricher) validate(raw []string) []string {
	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if utf8.RuneCountInString(q) < e.minQuestionChars {
			continue
		}
		questions = append(questions, q)
		if len(questions) == e.maxQuestions {
			break
		}
	}
	return questions
}
