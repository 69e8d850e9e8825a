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

// Package storage defines the persistence contract for fragments and
// questions. Implementations live in storage/postgres (production) and
// storage/badger (embedded).
package storage

import (
	"context"

	"github.com/mishgancheg/wiki-rag/core"
)

// FragmentHit is one fragment-collection nearest-neighbor row.
type FragmentHit struct {
	FragmentID  string
	DocumentID  string
	DisplayText string
	Distance    float64
}

// QuestionHit is one question-collection nearest-neighbor row. It carries
// the parent fragment's display text so results can be rendered without a
// second lookup.
type QuestionHit struct {
	FragmentID   string
	DocumentID   string
	DisplayText  string
	QuestionText string
	Distance     float64
}

// Store persists fragments and questions and serves vector queries.
//
// Rows with a nil embedding are stored but never returned by the nearest-
// neighbor queries. Distances are cosine distances; maxDistance is an upper
// bound on qualifying rows.
type Store interface {
	// InsertFragment stores a fragment and returns its row ID. A missing
	// fragment ID is generated.
	InsertFragment(ctx context.Context, fragment *core.Fragment) (string, error)

	// InsertQuestion stores a question linked to an existing fragment and
	// returns its row ID. A missing question ID is generated.
	InsertQuestion(ctx context.Context, question *core.Question) (string, error)

	// DeleteByDocumentID removes every fragment and question belonging to
	// the document.
	DeleteByDocumentID(ctx context.Context, documentID string) error

	// NearestFragments returns up to limit fragments within maxDistance of
	// the vector, ascending by distance.
	NearestFragments(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]FragmentHit, error)

	// NearestQuestions returns up to limit questions within maxDistance of
	// the vector, ascending by distance.
	NearestQuestions(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]QuestionHit, error)

	// ListIndexedDocumentIDs filters candidateIDs down to the documents
	// that have at least one stored fragment.
	ListIndexedDocumentIDs(ctx context.Context, candidateIDs []string) ([]string, error)

	// WithTransaction runs fn against a transactional view of the store;
	// the writes are applied atomically when fn returns nil.
	WithTransaction(ctx context.Context, fn func(tx Store) error) error

	// Close releases the underlying resources.
	Close() error
}
