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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	wikirag "github.com/mishgancheg/wiki-rag"
	"github.com/mishgancheg/wiki-rag/config"
	"github.com/mishgancheg/wiki-rag/search"
	"github.com/mishgancheg/wiki-rag/server"
)

func main() {
	app := &cli.App{
		Name:  "wiki-rag",
		Usage: "Wiki ingestion and semantic retrieval service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
			},
			{
				Name:      "index",
				Usage:     "Ingest wiki pages by ID",
				ArgsUsage: "PAGE_ID [PAGE_ID...]",
				Action:    indexCommand,
			},
			{
				Name:      "search",
				Usage:     "Run a retrieval query against the store",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Maximum cosine distance for a match (0..1)",
						Value: search.DefaultThreshold,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: search.DefaultLimit,
					},
				},
			},
			{
				Name:   "spaces",
				Usage:  "List wiki spaces available for indexing",
				Action: spacesCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	svc, err := wikirag.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, svc.Engine(), svc.Coordinator(), svc.Source(), svc.Store())

	return srv.Run(ctx)
}

func indexCommand(c *cli.Context) error {
	pageIDs := c.Args().Slice()
	if len(pageIDs) == 0 {
		return fmt.Errorf("at least one page ID is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	svc, err := wikirag.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	reports, err := svc.Coordinator().IngestDocuments(ctx, pageIDs)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	for _, report := range reports {
		fmt.Fprintf(os.Stderr, "%s: %d fragments, %d questions (%s)\n",
			report.DocumentID, report.FragmentsSaved, report.QuestionsSaved, report.Usage.String())
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	svc, err := wikirag.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	results, err := svc.Engine().Search(ctx, query, c.Float64("threshold"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "no results")
		return nil
	}
	for i, result := range results {
		fmt.Printf("--- %d. %s (distance %.4f)\n", i+1, result.FragmentID, result.Distance)
		if result.MatchedQuestion != "" {
			fmt.Printf("    matched question: %s\n", result.MatchedQuestion)
		}
		fmt.Println(result.DisplayText)
		fmt.Println()
	}
	return nil
}

func spacesCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	svc, err := wikirag.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	spaces, err := svc.Source().ListSpaces(ctx)
	if err != nil {
		return fmt.Errorf("list spaces: %w", err)
	}
	for _, space := range spaces {
		fmt.Printf("%s\t%s\n", space.Key, space.Name)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
