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

package ingestion

import (
	"sync"
	"time"
)

// Stage is one step of the per-document state machine.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageFetching   Stage = "fetching"
	StageCleaning   Stage = "cleaning"
	StageSegmenting Stage = "segmenting"
	StageEnriching  Stage = "enriching"
	StageEmbedding  Stage = "embedding"
	StageSaving     Stage = "saving"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// stagePercent maps stages to the reported progress percentage.
var stagePercent = map[Stage]int{
	StageQueued:     0,
	StageFetching:   10,
	StageCleaning:   25,
	StageSegmenting: 40,
	StageEnriching:  60,
	StageEmbedding:  75,
	StageSaving:     90,
	StageCompleted:  100,
	StageError:      100,
}

// Terminal reports whether the stage ends the state machine.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// StatusRecord is the per-document ingestion status.
type StatusRecord struct {
	DocumentID     string    `json:"documentId"`
	Title          string    `json:"title,omitempty"`
	Stage          Stage     `json:"stage"`
	Percent        int       `json:"percent"`
	Error          string    `json:"error,omitempty"`
	FragmentsSaved int       `json:"fragmentsSaved"`
	QuestionsSaved int       `json:"questionsSaved"`
	StartedAt      time.Time `json:"startedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DefaultRetention is the number of records the registry keeps.
const DefaultRetention = 500

// Registry tracks per-document ingestion status. Past the retention limit,
// terminal records are evicted oldest-first.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*StatusRecord
	order     []string
	retention int
}

// NewRegistry creates a registry keeping at most retention records.
func NewRegistry(retention int) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{
		records:   make(map[string]*StatusRecord),
		retention: retention,
	}
}

// Track registers a document as queued, replacing any previous record for
// the same document.
func (r *Registry) Track(documentID, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[documentID]; !exists {
		r.order = append(r.order, documentID)
	}
	now := time.Now().UTC()
	r.records[documentID] = &StatusRecord{
		DocumentID: documentID,
		Title:      title,
		Stage:      StageQueued,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	r.evictLocked()
}

// SetStage advances a document's stage and returns the reported percent.
// The percentage never decreases.
func (r *Registry) SetStage(documentID string, stage Stage) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[documentID]
	if !ok {
		return 0
	}
	record.Stage = stage
	if percent := stagePercent[stage]; percent > record.Percent {
		record.Percent = percent
	}
	record.UpdatedAt = time.Now().UTC()
	return record.Percent
}

// SetError moves a document to the terminal error state with a message.
func (r *Registry) SetError(documentID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[documentID]
	if !ok {
		return
	}
	record.Stage = StageError
	record.Percent = stagePercent[StageError]
	record.Error = message
	record.UpdatedAt = time.Now().UTC()
}

// SetCounts records the saved row counts.
func (r *Registry) SetCounts(documentID string, fragments, questions int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[documentID]
	if !ok {
		return
	}
	record.FragmentsSaved = fragments
	record.QuestionsSaved = questions
	record.UpdatedAt = time.Now().UTC()
}

// SetTitle fills in the document title once known.
func (r *Registry) SetTitle(documentID, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.records[documentID]; ok {
		record.Title = title
		record.UpdatedAt = time.Now().UTC()
	}
}

// Get returns a copy of a document's status record.
func (r *Registry) Get(documentID string) (StatusRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[documentID]
	if !ok {
		return StatusRecord{}, false
	}
	return *record, true
}

// Summary is an aggregate view of the registry.
type Summary struct {
	Queued     int            `json:"queued"`
	Processing int            `json:"processing"`
	Completed  int            `json:"completed"`
	Errors     int            `json:"errors"`
	Records    []StatusRecord `json:"records"`
}

// Snapshot returns counts and record copies in tracking order.
func (r *Registry) Snapshot() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := Summary{Records: make([]StatusRecord, 0, len(r.records))}
	for _, id := range r.order {
		record, ok := r.records[id]
		if !ok {
			continue
		}
		summary.Records = append(summary.Records, *record)
		switch record.Stage {
		case StageQueued:
			summary.Queued++
		case StageCompleted:
			summary.Completed++
		case StageError:
			summary.Errors++
		default:
			summary.Processing++
		}
	}
	return summary
}

// evictLocked drops the oldest terminal records past the retention limit.
// Active records are never evicted.
func (r *Registry) evictLocked() {
	if len(r.records) <= r.retention {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		record, ok := r.records[id]
		if !ok {
			continue
		}
		if len(r.records) > r.retention && record.Stage.Terminal() {
			delete(r.records, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}
