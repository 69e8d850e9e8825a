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

// Package badger implements storage.Store on an embedded BadgerDB for
// local and development deployments. Values are MUS-encoded; similarity
// queries are a brute-force cosine scan that skips vector-less rows.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/mishgancheg/wiki-rag/core"
	"github.com/mishgancheg/wiki-rag/storage"
)

// Key prefixes for the two collections. Keys embed the document ID so a
// document's rows form one contiguous prefix range.
const (
	fragmentPrefix = "frag"
	questionPrefix = "ques"
)

func fragmentKey(documentID, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", fragmentPrefix, documentID, id))
}

func questionKey(documentID, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", questionPrefix, documentID, id))
}

type fragmentRecord struct {
	ID          string
	DocumentID  string
	DisplayText string
	IndexText   string
	Embedding   []float32
	CreatedAt   time.Time
}

type questionRecord struct {
	ID         string
	FragmentID string
	DocumentID string
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// dbErr maps database-lifecycle errors onto the storage sentinels.
func dbErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return storage.ErrClosed
	}
	return err
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Store implements storage.Store on BadgerDB.
type Store struct {
	db     *badger.DB
	mu     sync.Mutex
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) a store at the given directory.
func Open(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	return open(badger.DefaultOptions(path))
}

// OpenInMemory opens a non-persistent store, mainly for tests and local
// experiments.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	logger := slog.Default().With("component", "badger-store")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// InsertFragment stores a fragment, generating a UUID row ID when absent.
func (s *Store) InsertFragment(ctx context.Context, fragment *core.Fragment) (string, error) {
	id := fragment.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := fragment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	record := fragmentRecord{
		ID:          id,
		DocumentID:  fragment.DocumentID,
		DisplayText: fragment.DisplayText,
		IndexText:   fragment.IndexText,
		Embedding:   fragment.Embedding,
		CreatedAt:   createdAt,
	}
	if err := s.put(fragmentKey(fragment.DocumentID, id), marshalFragmentRecord(record)); err != nil {
		return "", fmt.Errorf("inserting fragment for document %s: %w", fragment.DocumentID, err)
	}
	return id, nil
}

// InsertQuestion stores a question, generating a UUID row ID when absent.
func (s *Store) InsertQuestion(ctx context.Context, question *core.Question) (string, error) {
	id := question.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := question.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	record := questionRecord{
		ID:         id,
		FragmentID: question.FragmentID,
		DocumentID: question.DocumentID,
		Text:       question.Text,
		Embedding:  question.Embedding,
		CreatedAt:  createdAt,
	}
	if err := s.put(questionKey(question.DocumentID, id), marshalQuestionRecord(record)); err != nil {
		return "", fmt.Errorf("inserting question for fragment %s: %w", question.FragmentID, err)
	}
	return id, nil
}

func (s *Store) put(key, value []byte) error {
	return dbErr(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}))
}

// DeleteByDocumentID removes every fragment and question of the document.
func (s *Store) DeleteByDocumentID(ctx context.Context, documentID string) error {
	prefixes := [][]byte{
		[]byte(fmt.Sprintf("%s:%s:", fragmentPrefix, documentID)),
		[]byte(fmt.Sprintf("%s:%s:", questionPrefix, documentID)),
	}
	for _, prefix := range prefixes {
		if err := s.deletePrefix(prefix); err != nil {
			return fmt.Errorf("deleting rows for document %s: %w", documentID, err)
		}
	}
	return nil
}

func (s *Store) deletePrefix(prefix []byte) error {
	return dbErr(s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	}))
}

// NearestFragments scans the fragment collection for rows within
// maxDistance of the vector, ascending by distance.
func (s *Store) NearestFragments(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.FragmentHit, error) {
	var hits []storage.FragmentHit
	err := s.scan([]byte(fragmentPrefix+":"), func(value []byte) error {
		record, err := unmarshalFragmentRecord(value)
		if err != nil {
			return err
		}
		if record.Embedding == nil {
			return nil
		}
		distance, ok := cosineDistance(vector, record.Embedding)
		if !ok || distance > maxDistance {
			return nil
		}
		hits = append(hits, storage.FragmentHit{
			FragmentID:  record.ID,
			DocumentID:  record.DocumentID,
			DisplayText: record.DisplayText,
			Distance:    distance,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning fragments: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// NearestQuestions scans the question collection, resolving each hit's
// fragment display text.
func (s *Store) NearestQuestions(ctx context.Context, vector []float32, maxDistance float64, limit int) ([]storage.QuestionHit, error) {
	var hits []storage.QuestionHit
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(questionPrefix + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record questionRecord
			err := it.Item().Value(func(value []byte) error {
				var verr error
				record, verr = unmarshalQuestionRecord(value)
				return verr
			})
			if err != nil {
				return err
			}
			if record.Embedding == nil {
				continue
			}
			distance, ok := cosineDistance(vector, record.Embedding)
			if !ok || distance > maxDistance {
				continue
			}

			displayText, err := fragmentDisplayText(txn, record.DocumentID, record.FragmentID)
			if err != nil {
				return err
			}
			hits = append(hits, storage.QuestionHit{
				FragmentID:   record.FragmentID,
				DocumentID:   record.DocumentID,
				DisplayText:  displayText,
				QuestionText: record.Text,
				Distance:     distance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning questions: %w", dbErr(err))
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// fragmentDisplayText resolves a question's parent fragment. A question
// row whose fragment is gone indicates a broken replace; it surfaces as
// storage.ErrNotFound rather than an empty hit.
func fragmentDisplayText(txn *badger.Txn, documentID, fragmentID string) (string, error) {
	item, err := txn.Get(fragmentKey(documentID, fragmentID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", fmt.Errorf("fragment %s of document %s: %w", fragmentID, documentID, storage.ErrNotFound)
		}
		return "", err
	}
	var record fragmentRecord
	if err := item.Value(func(value []byte) error {
		var verr error
		record, verr = unmarshalFragmentRecord(value)
		return verr
	}); err != nil {
		return "", err
	}
	return record.DisplayText, nil
}

func (s *Store) scan(prefix []byte, visit func(value []byte) error) error {
	return dbErr(s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(visit); err != nil {
				return err
			}
		}
		return nil
	}))
}

// ListIndexedDocumentIDs filters candidateIDs down to documents with at
// least one stored fragment, preserving candidate order.
func (s *Store) ListIndexedDocumentIDs(ctx context.Context, candidateIDs []string) ([]string, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	indexed := make(map[string]bool)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fragmentPrefix + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			parts := strings.SplitN(key, ":", 3)
			if len(parts) == 3 {
				indexed[parts[1]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing indexed documents: %w", dbErr(err))
	}

	var ids []string
	for _, id := range candidateIDs {
		if indexed[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// WithTransaction serializes the unit of work against other callers. The
// embedded backend applies each write in its own transaction; atomicity
// across the whole unit is weaker than the postgres backend's.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
