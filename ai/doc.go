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


// Package ai provides abstractions for the AI services used by wiki-rag.
//
// It defines interfaces for the three model-backed operations the ingestion
// and retrieval pipelines depend on: text embeddings (Embedder), semantic
// chunk splitting (ChunkSplitter), and question generation (QuestionWriter).
// The core pipeline packages depend only on these abstractions, never on a
// concrete client.
//
// Two implementation sub-packages exist:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles for unit testing without
//     external services
//
// Public constructors in ai/openai return interface types to enforce
// abstraction; the mock constructors return concrete types so tests can
// inject behavior and assert on call counts.
package ai
