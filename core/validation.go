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


package core

import "fmt"

// ValidateFragment validates a Fragment according to domain rules.
//
// Validation rules:
//   - DocumentID must not be empty
//   - DisplayText and IndexText must not be empty
//
// NOT validated:
//   - Embedding (nil is valid; the embedding call may have failed)
//   - ID (empty is valid before insertion, the store assigns one)
func ValidateFragment(fragment *Fragment) error {
	if fragment == nil {
		return fmt.Errorf("%w: fragment is nil", ErrInvalidFragment)
	}
	if fragment.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrEmptyDocumentID)
	}
	if fragment.DisplayText == "" || fragment.IndexText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrEmptyText)
	}
	return nil
}

// ValidateQuestion validates a Question according to domain rules.
//
// Validation rules:
//   - FragmentID and DocumentID must not be empty
//   - Text must not be empty
//
// NOT validated:
//   - Embedding (nil is valid; the embedding call may have failed)
//   - ID (empty is valid before insertion, the store assigns one)
func ValidateQuestion(question *Question) error {
	if question == nil {
		return fmt.Errorf("%w: question is nil", ErrInvalidQuestion)
	}
	if question.FragmentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, ErrEmptyFragmentID)
	}
	if question.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, ErrEmptyDocumentID)
	}
	if question.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, ErrEmptyText)
	}
	return nil
}
