package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/mishgancheg/wiki-rag/core"
)

// MockQuestionWriter is a test double for ai.QuestionWriter. Safe for
// concurrent use, matching the interface contract.
type MockQuestionWriter struct {
	// WriteQuestionsFunc is called by WriteQuestions if set.
	// If nil, generates numbered placeholder questions.
	WriteQuestionsFunc func(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error)

	callCount atomic.Int64
}

// NewMockQuestionWriter creates a mock question writer with default
// deterministic behavior. Returns the concrete type to allow test
// assertions.
func NewMockQuestionWriter() *MockQuestionWriter {
	return &MockQuestionWriter{}
}

// WriteQuestions generates count placeholder questions derived from the
// fragment unless a custom function is injected.
func (m *MockQuestionWriter) WriteQuestions(ctx context.Context, fragment, docContext string, count int) ([]string, core.Usage, error) {
	m.callCount.Add(1)

	if m.WriteQuestionsFunc != nil {
		return m.WriteQuestionsFunc(ctx, fragment, docContext, count)
	}

	prefix := fragment
	if len(prefix) > 24 {
		prefix = prefix[:24]
	}
	questions := make([]string, count)
	for i := range questions {
		questions[i] = fmt.Sprintf("What does %q explain? (variant %d)", prefix, i+1)
	}
	return questions, core.Usage{}, nil
}

// CallCount returns the number of times WriteQuestions was called.
func (m *MockQuestionWriter) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockQuestionWriter) Reset() {
	m.callCount.Store(0)
	m.WriteQuestionsFunc = nil
}
