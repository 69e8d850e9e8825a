package core

import (
	"fmt"
	"time"
)

// Document is a single page fetched from the content source. Documents are
// transient: they exist for the duration of one ingestion run and are not
// persisted. The ID is the content source's page identifier.
type Document struct {
	ID           string
	Title        string
	URL          string
	Content      string // raw markup as returned by the source
	LastModified time.Time
}

// Fragment is one retrievable, self-contained slice of a document.
// DisplayText is what a consumer sees (provenance header + content);
// IndexText is the plain content the embedding is computed from.
// Embedding may be nil when the embedding call for this fragment failed;
// such rows are excluded from similarity queries.
type Fragment struct {
	ID          string
	DocumentID  string
	DisplayText string
	IndexText   string
	Embedding   []float32
	CreatedAt   time.Time
}

// Question is an LLM-generated query designed to retrieve a specific
// fragment. DocumentID is denormalized from the parent fragment so that
// re-indexing a document can drop questions without a join.
type Question struct {
	ID         string
	FragmentID string
	DocumentID string
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// RankedFragment is a single retrieval result. Distance is the cosine
// distance between the query and the winning row (lower is better).
// MatchedQuestion is empty when the fragment's own embedding won the match.
type RankedFragment struct {
	FragmentID      string
	DocumentID      string
	DisplayText     string
	MatchedQuestion string
	Distance        float64
}

// Usage accumulates token and cost accounting across model calls.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
}

// Add folds another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Cost += other.Cost
}

// String renders usage for log output.
func (u Usage) String() string {
	return fmt.Sprintf("tokens=%d cost=$%.6f", u.TotalTokens, u.Cost)
}

// IngestReport summarizes a completed document ingestion.
type IngestReport struct {
	DocumentID     string
	Title          string
	FragmentsSaved int
	QuestionsSaved int
	Usage          Usage
	Elapsed        time.Duration
}
