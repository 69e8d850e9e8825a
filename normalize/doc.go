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

// Package normalize cleans raw wiki page markup before segmentation.
//
// The normalizer parses markup into a tree and applies a fixed sequence of
// deterministic passes: noise removal (scripts, styles, forms, metadata,
// hidden subtrees), attribute stripping, emphasis canonicalization, a
// bounded number of structural cleanup iterations (empty-element removal,
// wrapper unwrapping, depth flattening), and whitespace minification.
// The result is stable: running Normalize on its own output returns the
// same string.
package normalize
