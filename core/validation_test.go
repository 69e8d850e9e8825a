package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFragment(t *testing.T) {
	tests := []struct {
		name     string
		fragment *Fragment
		wantErr  error
	}{
		{
			name: "valid fragment",
			fragment: &Fragment{
				DocumentID:  "12345",
				DisplayText: "Page: Setup\nURL: https://wiki.example.com/x\n\nInstall the agent.",
				IndexText:   "Install the agent.",
			},
		},
		{
			name: "valid fragment without embedding",
			fragment: &Fragment{
				DocumentID:  "12345",
				DisplayText: "d",
				IndexText:   "i",
				Embedding:   nil,
			},
		},
		{
			name:     "nil fragment",
			fragment: nil,
			wantErr:  ErrInvalidFragment,
		},
		{
			name: "missing document id",
			fragment: &Fragment{
				DisplayText: "d",
				IndexText:   "i",
			},
			wantErr: ErrEmptyDocumentID,
		},
		{
			name: "missing index text",
			fragment: &Fragment{
				DocumentID:  "12345",
				DisplayText: "d",
			},
			wantErr: ErrEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFragment(tt.fragment)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidFragment)
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name     string
		question *Question
		wantErr  error
	}{
		{
			name: "valid question",
			question: &Question{
				FragmentID: "b3c7",
				DocumentID: "12345",
				Text:       "How do I install the agent?",
			},
		},
		{
			name:     "nil question",
			question: nil,
			wantErr:  ErrInvalidQuestion,
		},
		{
			name: "missing fragment id",
			question: &Question{
				DocumentID: "12345",
				Text:       "How?",
			},
			wantErr: ErrEmptyFragmentID,
		},
		{
			name: "missing document id",
			question: &Question{
				FragmentID: "b3c7",
				Text:       "How?",
			},
			wantErr: ErrEmptyDocumentID,
		},
		{
			name: "empty text",
			question: &Question{
				FragmentID: "b3c7",
				DocumentID: "12345",
			},
			wantErr: ErrEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestion(tt.question)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Cost: 0.001}
	u.Add(Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5, Cost: 0.0005})

	assert.Equal(t, 12, u.PromptTokens)
	assert.Equal(t, 8, u.CompletionTokens)
	assert.Equal(t, 20, u.TotalTokens)
	assert.InDelta(t, 0.0015, u.Cost, 1e-9)
}
