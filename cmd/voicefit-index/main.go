// Command voicefit-index embeds the exercise catalogue into the pgvector
// search index. Run it after editing the seed file or swapping the embedding
// model; the server only queries the index, it never writes to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zchasse63/voice-fit-sub008/internal/config"
	"github.com/Zchasse63/voice-fit-sub008/internal/registry"
	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings"
	ollamaembed "github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings/ollama"
	oaembed "github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings/openai"
	searchpg "github.com/Zchasse63/voice-fit-sub008/pkg/search/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	batchSize := flag.Int("batch", 64, "exercises embedded per provider call")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicefit-index: %v\n", err)
		return 1
	}
	if cfg.Search.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "voicefit-index: search.postgres_dsn is not configured")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := buildEmbedder(cfg.Embeddings.Provider)
	if err != nil {
		slog.Error("failed to create embeddings provider", "err", err)
		return 1
	}

	exercises, err := loadCatalogue(ctx, cfg)
	if err != nil {
		slog.Error("failed to load exercise catalogue", "err", err)
		return 1
	}
	slog.Info("catalogue loaded", "exercises", len(exercises), "model", embedder.ModelID())

	pool, err := pgxpool.New(ctx, cfg.Search.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to search database", "err", err)
		return 1
	}
	defer pool.Close()

	index := searchpg.New(pool, embedder)
	if err := index.Migrate(ctx); err != nil {
		slog.Error("migration failed", "err", err)
		return 1
	}

	start := time.Now()
	for lo := 0; lo < len(exercises); lo += *batchSize {
		hi := min(lo+*batchSize, len(exercises))
		ids := make([]string, 0, hi-lo)
		names := make([]string, 0, hi-lo)
		for _, ex := range exercises[lo:hi] {
			ids = append(ids, ex.ID)
			names = append(names, ex.Name)
		}
		if err := index.Upsert(ctx, ids, names); err != nil {
			slog.Error("upsert failed", "batch_start", lo, "err", err)
			return 1
		}
		slog.Info("batch indexed", "done", hi, "total", len(exercises))
	}

	slog.Info("index complete",
		"exercises", len(exercises),
		"dimensions", embedder.Dimensions(),
		"duration", time.Since(start).Round(time.Millisecond))
	return 0
}

func buildEmbedder(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	case "ollama":
		return ollamaembed.New(entry.BaseURL, entry.Model)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
}

func loadCatalogue(ctx context.Context, cfg *config.Config) ([]registry.Exercise, error) {
	if cfg.Registry.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Registry.PostgresDSN)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return registry.NewPostgresStore(pool).All(ctx)
	}
	seed, err := registry.LoadSeedFile(cfg.Registry.SeedFile)
	if err != nil {
		return nil, err
	}
	return seed.Exercises, nil
}
