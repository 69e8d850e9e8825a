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

// Package postgres implements storage.Store on PostgreSQL with the
// pgvector extension. Cosine distances are computed by the <=> operator;
// nullable vector columns keep rows with failed embeddings out of the
// similarity queries.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mishgancheg/wiki-rag/core"
	"github.com/mishgancheg/wiki-rag/storage"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db     *sql.DB // nil for transactional views
	q      querier
	dim    int
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database at dsn. dim is the deployment-wide
// embedding dimension.
func Open(dsn string, dim int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return NewWithDB(db, dim), nil
}

// NewWithDB wraps an existing database handle.
func NewWithDB(db *sql.DB, dim int) *Store {
	return &Store{
		db:     db,
		q:      db,
		dim:    dim,
		logger: slog.Default().With("component", "postgres-store"),
	}
}

// EnsureSchema creates the extension, tables, and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.ExecContext(ctx, Schema(s.dim)); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

const insertFragmentQuery = `
INSERT INTO fragments (id, document_id, display_text, index_text, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// InsertFragment stores a fragment, generating a UUID row ID when absent.
func (s *Store) InsertFragment(ctx context.Context, fragment *core.Fragment) (string, error) {
	if err := s.checkVector(fragment.Embedding); err != nil {
		return "", err
	}
	id := fragment.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := fragment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, insertFragmentQuery,
		id, fragment.DocumentID, fragment.DisplayText, fragment.IndexText,
		vectorValue(fragment.Embedding), createdAt)
	if err != nil {
		return "", fmt.Errorf("inserting fragment for document %s: %w", fragment.DocumentID, err)
	}
	return id, nil
}

const insertQuestionQuery = `
INSERT INTO questions (id, fragment_id, document_id, text, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// InsertQuestion stores a question, generating a UUID row ID when absent.
func (s *Store) InsertQuestion(ctx context.Context, question *core.Question) (string, error) {
	if err := s.checkVector(question.Embedding); err != nil {
		return "", err
	}
	id := question.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := question.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, insertQuestionQuery,
		id, question.FragmentID, question.DocumentID, question.Text,
		vectorValue(question.Embedding), createdAt)
	if err != nil {
		return "", fmt.Errorf("inserting question for fragment %s: %w", question.FragmentID, err)
	}
	return id, nil
}

// DeleteByDocumentID removes the document's fragments; its questions go
// with them through the ON DELETE CASCADE foreign key.
func (s *Store) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM fragments WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("deleting rows for document %s: %w", documentID, err)
	}
	return nil
}

const nearestFragmentsQuery = `
SELECT id, document_id, display_text, embedding <=> $1 AS distance
FROM fragments
WHERE embedding IS NOT NULL AND embedding <=> $1 <= $2
ORDER BY distance
LIMIT $3`

// NearestFragments runs the fragment-collection cosine query.
func (s *Store) NearestFragments(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.FragmentHit, error) {
	if err := s.checkVector(vector); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, nearestFragmentsQuery,
		pgvector.NewVector(vector), maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("querying nearest fragments: %w", err)
	}
	defer rows.Close()

	var hits []storage.FragmentHit
	for rows.Next() {
		var hit storage.FragmentHit
		if err := rows.Scan(&hit.FragmentID, &hit.DocumentID, &hit.DisplayText, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scanning fragment hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

const nearestQuestionsQuery = `
SELECT q.fragment_id, q.document_id, f.display_text, q.text, q.embedding <=> $1 AS distance
FROM questions q
JOIN fragments f ON f.id = q.fragment_id
WHERE q.embedding IS NOT NULL AND q.embedding <=> $1 <= $2
ORDER BY distance
LIMIT $3`

// NearestQuestions runs the question-collection cosine query, joined with
// fragments for the display text.
func (s *Store) NearestQuestions(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.QuestionHit, error) {
	if err := s.checkVector(vector); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, nearestQuestionsQuery,
		pgvector.NewVector(vector), maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("querying nearest questions: %w", err)
	}
	defer rows.Close()

	var hits []storage.QuestionHit
	for rows.Next() {
		var hit storage.QuestionHit
		if err := rows.Scan(&hit.FragmentID, &hit.DocumentID, &hit.DisplayText, &hit.QuestionText, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scanning question hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ListIndexedDocumentIDs filters candidateIDs down to documents with at
// least one stored fragment.
func (s *Store) ListIndexedDocumentIDs(ctx context.Context, candidateIDs []string) ([]string, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT DISTINCT document_id FROM fragments WHERE document_id = ANY($1)`,
		pq.Array(candidateIDs))
	if err != nil {
		return nil, fmt.Errorf("listing indexed documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WithTransaction runs fn against a transactional view; the view's writes
// commit together when fn returns nil. Nested calls reuse the enclosing
// transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	view := &Store{q: tx, dim: s.dim, logger: s.logger}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the database handle. Transactional views are no-ops.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) checkVector(v []float32) error {
	if v != nil && len(v) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", storage.ErrInvalidVector, len(v), s.dim)
	}
	return nil
}

// vectorValue maps a nil slice to SQL NULL.
func vectorValue(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}
