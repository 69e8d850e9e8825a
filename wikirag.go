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

// Package wikirag assembles the wiki ingestion and retrieval system: a
// content source, a vector store, the AI services, the ingestion
// coordinator and the search engine, all wired from one configuration.
package wikirag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/ai/openai"
	"github.com/mishgancheg/wiki-rag/config"
	"github.com/mishgancheg/wiki-rag/embed"
	"github.com/mishgancheg/wiki-rag/enrich"
	"github.com/mishgancheg/wiki-rag/ingestion"
	"github.com/mishgancheg/wiki-rag/search"
	"github.com/mishgancheg/wiki-rag/segment"
	"github.com/mishgancheg/wiki-rag/source"
	"github.com/mishgancheg/wiki-rag/source/confluence"
	"github.com/mishgancheg/wiki-rag/storage"
	"github.com/mishgancheg/wiki-rag/storage/badger"
	"github.com/mishgancheg/wiki-rag/storage/postgres"
)

// Service owns every long-lived component of the system.
type Service struct {
	cfg         *config.Config
	source      source.Source
	store       storage.Store
	provider    ai.Provider
	coordinator *ingestion.Coordinator
	engine      *search.Engine
	logger      *slog.Logger
}

// NewService builds the full component graph from cfg. The caller must
// call Close when done.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	src := newSource(cfg)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := openai.NewProvider(aiConfig(cfg))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create AI provider: %w", err)
	}

	coordinator, err := ingestion.New(src, store, provider,
		ingestion.WithBatchSize(cfg.Pipeline.BatchSize),
		ingestion.WithStagger(cfg.Pipeline.Stagger),
		ingestion.WithEnrichConcurrency(cfg.Pipeline.EnrichConcurrency),
		ingestion.WithRetention(cfg.Pipeline.StatusRetention),
		ingestion.WithSegmenter(segment.New(provider.ChunkSplitter(),
			segment.WithChunkChars(cfg.Pipeline.ChunkChars),
			segment.WithMinContentChars(cfg.Pipeline.MinContentChars))),
		ingestion.WithEnricher(enrich.New(provider.QuestionWriter(),
			enrich.WithQuestionRange(cfg.Pipeline.MinQuestions, cfg.Pipeline.MaxQuestions))),
		ingestion.WithBatcher(embed.New(provider.Embedder(),
			embed.WithTokenBudget(cfg.Pipeline.TokenBudget),
			embed.WithBatchDelay(cfg.Pipeline.BatchDelay),
			embed.WithPricing(cfg.AI.EmbeddingPricePerMTok))),
	)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	return &Service{
		cfg:         cfg,
		source:      src,
		store:       store,
		provider:    provider,
		coordinator: coordinator,
		engine:      search.New(provider.Embedder(), store),
		logger:      slog.Default().With("component", "service"),
	}, nil
}

// Source returns the wiki content source.
func (s *Service) Source() source.Source {
	return s.source
}

// Store returns the vector store.
func (s *Service) Store() storage.Store {
	return s.store
}

// Coordinator returns the ingestion coordinator.
func (s *Service) Coordinator() *ingestion.Coordinator {
	return s.coordinator
}

// Engine returns the search engine.
func (s *Service) Engine() *search.Engine {
	return s.engine
}

func (s *Service) Close() error {
	s.coordinator.Close()
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}

func newSource(cfg *config.Config) source.Source {
	opts := []confluence.Option{}
	if cfg.Source.Username != "" {
		opts = append(opts, confluence.WithBasicAuth(cfg.Source.Username))
	}
	return confluence.NewClient(cfg.Source.BaseURL, cfg.Source.Token, opts...)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Database.Backend {
	case config.BackendBadger:
		store, err := badger.Open(cfg.Database.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.Open(cfg.Database.DSN, cfg.Database.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Database.Backend)
	}
}

func aiConfig(cfg *config.Config) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
		ai.WithChatHost(cfg.AI.ChatHost),
		ai.WithToken(cfg.AI.Token),
		ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		ai.WithChatModel(cfg.AI.ChatModel),
		ai.WithEmbeddingDimensions(cfg.Database.EmbeddingDim),
		ai.WithPricing(cfg.AI.PromptPricePerMTok, cfg.AI.CompletionPricePerMTok, cfg.AI.EmbeddingPricePerMTok),
	)
}
