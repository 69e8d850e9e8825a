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

// Package source defines the content-source contract the ingestion
// pipeline and HTTP surface depend on. Implementations live in
// sub-packages (source/confluence).
package source

import (
	"context"
	"time"
)

// Space is a top-level content container.
type Space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// PageRef is a lightweight page listing entry.
type PageRef struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	HasChildren bool   `json:"hasChildren"`
}

// Page is a full page with its raw markup body.
type Page struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	HTML         string `json:"html"`
	URL          string `json:"url"`
	LastModified time.Time `json:"lastModified"`
}

// Source provides read access to a wiki content tree.
type Source interface {
	// ListSpaces returns all visible spaces.
	ListSpaces(ctx context.Context) ([]Space, error)

	// ListRootPages returns the top-level pages of a space.
	ListRootPages(ctx context.Context, spaceKey string) ([]PageRef, error)

	// ListChildren returns the direct children of a page.
	ListChildren(ctx context.Context, parentID string) ([]PageRef, error)

	// GetPageContent returns the full page including its markup body.
	GetPageContent(ctx context.Context, id string) (*Page, error)
}
