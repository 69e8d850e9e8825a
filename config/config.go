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

// Package config loads all process settings from the environment, with an
// optional .env file for local development. Missing required settings are
// reported together at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects and configures the store backend.
type DatabaseConfig struct {
	Backend      string
	DSN          string
	BadgerPath   string
	EmbeddingDim int
}

// SourceConfig holds the content source credentials.
type SourceConfig struct {
	BaseURL  string
	Token    string
	Username string
}

// AIConfig holds the model service settings.
type AIConfig struct {
	EmbeddingHost          string
	ChatHost               string
	Token                  string
	EmbeddingModel         string
	ChatModel              string
	PromptPricePerMTok     float64
	CompletionPricePerMTok float64
	EmbeddingPricePerMTok  float64
}

// PipelineConfig tunes the ingestion pipeline.
type PipelineConfig struct {
	ChunkChars        int
	MinContentChars   int
	MinQuestions      int
	MaxQuestions      int
	TokenBudget       int
	BatchDelay        time.Duration
	BatchSize         int
	Stagger           time.Duration
	EnrichConcurrency int
	StatusRetention   int
}

// Config is the full process configuration.
type Config struct {
	LogLevel string
	Server   ServerConfig
	Database DatabaseConfig
	Source   SourceConfig
	AI       AIConfig
	Pipeline PipelineConfig
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present. All validation failures
// are reported in one error.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be fully set already.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Backend:      strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
			DSN:          getEnv("DATABASE_DSN", ""),
			BadgerPath:   getEnv("BADGER_PATH", "./data/wiki-rag"),
			EmbeddingDim: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		},
		Source: SourceConfig{
			BaseURL:  getEnv("CONFLUENCE_BASE_URL", ""),
			Token:    getEnv("CONFLUENCE_TOKEN", ""),
			Username: getEnv("CONFLUENCE_USERNAME", ""),
		},
		AI: AIConfig{
			EmbeddingHost:          getEnv("AI_EMBEDDING_HOST", getEnv("AI_HOST", "")),
			ChatHost:               getEnv("AI_CHAT_HOST", getEnv("AI_HOST", "")),
			Token:                  getEnv("AI_TOKEN", ""),
			EmbeddingModel:         getEnv("AI_EMBEDDING_MODEL", ""),
			ChatModel:              getEnv("AI_CHAT_MODEL", ""),
			PromptPricePerMTok:     getEnvFloat("AI_PROMPT_PRICE_PER_MTOK", 0),
			CompletionPricePerMTok: getEnvFloat("AI_COMPLETION_PRICE_PER_MTOK", 0),
			EmbeddingPricePerMTok:  getEnvFloat("AI_EMBEDDING_PRICE_PER_MTOK", 0),
		},
		Pipeline: PipelineConfig{
			ChunkChars:        getEnvInt("CHUNK_CHARS", 2000),
			MinContentChars:   getEnvInt("MIN_CONTENT_CHARS", 50),
			MinQuestions:      getEnvInt("MIN_QUESTIONS", 3),
			MaxQuestions:      getEnvInt("MAX_QUESTIONS", 20),
			TokenBudget:       getEnvInt("EMBED_TOKEN_BUDGET", 8000),
			BatchDelay:        getEnvDuration("EMBED_BATCH_DELAY", 100*time.Millisecond),
			BatchSize:         getEnvInt("INGEST_BATCH_SIZE", 5),
			Stagger:           getEnvDuration("INGEST_STAGGER", 200*time.Millisecond),
			EnrichConcurrency: getEnvInt("ENRICH_CONCURRENCY", 3),
			StatusRetention:   getEnvInt("STATUS_RETENTION", 500),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Source.BaseURL == "" {
		errs = append(errs, errors.New("CONFLUENCE_BASE_URL is required"))
	}
	if c.Source.Token == "" {
		errs = append(errs, errors.New("CONFLUENCE_TOKEN is required"))
	}
	switch c.Database.Backend {
	case BackendPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres backend"))
		}
	case BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Database.Backend))
	}
	if c.Database.EmbeddingDim <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSIONS must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
