// Command voicefit is the main entry point for the VoiceFit command server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/Zchasse63/voice-fit-sub008/internal/analytics"
	"github.com/Zchasse63/voice-fit-sub008/internal/confidence"
	"github.com/Zchasse63/voice-fit-sub008/internal/config"
	"github.com/Zchasse63/voice-fit-sub008/internal/extract"
	"github.com/Zchasse63/voice-fit-sub008/internal/health"
	"github.com/Zchasse63/voice-fit-sub008/internal/httpapi"
	"github.com/Zchasse63/voice-fit-sub008/internal/observe"
	"github.com/Zchasse63/voice-fit-sub008/internal/pipeline"
	"github.com/Zchasse63/voice-fit-sub008/internal/registry"
	"github.com/Zchasse63/voice-fit-sub008/internal/resilience"
	"github.com/Zchasse63/voice-fit-sub008/internal/resolve"
	"github.com/Zchasse63/voice-fit-sub008/internal/session"
	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings"
	ollamaembed "github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings/ollama"
	oaembed "github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings/openai"
	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/llm"
	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/llm/anyllm"
	oaillm "github.com/Zchasse63/voice-fit-sub008/pkg/provider/llm/openai"
	searchpg "github.com/Zchasse63/voice-fit-sub008/pkg/search/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level var lets the config watcher adjust verbosity at runtime.
	levelVar := &slog.LevelVar{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	// ── Configuration, with hot reload for the tunable knobs ──────────────────
	// The classifier is built before the watcher starts so the poll goroutine
	// never observes a half-initialised pipeline.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicefit: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicefit: %v\n", err)
		}
		return 1
	}
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	classifier := confidence.New(confidenceConfig(cfg.Confidence))

	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.ConfidenceChanged {
			classifier.Update(confidenceConfig(d.NewConfidence))
			slog.Info("confidence thresholds changed",
				"auto_accept", d.NewConfidence.AutoAccept,
				"needs_confirmation", d.NewConfidence.NeedsConfirmation)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicefit: %v\n", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("voicefit starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voicefit"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Completion oracle with circuit-breaker fallback chain ─────────────────
	oracle, err := buildOracle(cfg, reg)
	if err != nil {
		slog.Error("failed to build completion oracle", "err", err)
		return 1
	}

	var extractOpts []extract.Option
	if cfg.Oracle.RequestTimeout > 0 {
		extractOpts = append(extractOpts, extract.WithTimeout(cfg.Oracle.RequestTimeout))
	}
	if cfg.Oracle.MaxTokens > 0 {
		extractOpts = append(extractOpts, extract.WithMaxTokens(cfg.Oracle.MaxTokens))
	}
	extractor := extract.NewClient(oracle, extractOpts...)

	// ── Exercise catalogue ────────────────────────────────────────────────────
	var checkers []health.Checker
	var store registry.Store
	if cfg.Registry.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Registry.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to catalogue database", "err", err)
			return 1
		}
		defer pool.Close()

		pgStore := registry.NewPostgresStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			slog.Error("catalogue migration failed", "err", err)
			return 1
		}
		store = pgStore
		checkers = append(checkers, health.Checker{Name: "catalogue-db", Check: pool.Ping})
		slog.Info("exercise catalogue backed by postgres")
	} else {
		seed, err := registry.LoadSeedFile(cfg.Registry.SeedFile)
		if err != nil {
			slog.Error("failed to load exercise seed file", "path", cfg.Registry.SeedFile, "err", err)
			return 1
		}
		store = registry.NewMemStore(seed.Exercises)
		slog.Info("exercise catalogue loaded", "path", cfg.Registry.SeedFile, "exercises", len(seed.Exercises))
	}

	// ── Semantic search tier (optional) ───────────────────────────────────────
	var index *searchpg.Index
	if cfg.Search.PostgresDSN != "" {
		embedder, err := buildEmbedder(reg, cfg)
		if err != nil {
			slog.Error("failed to create embeddings provider", "err", err)
			return 1
		}
		pool, err := pgxpool.New(ctx, cfg.Search.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to search database", "err", err)
			return 1
		}
		defer pool.Close()

		index = searchpg.New(pool, embedder)
		if err := index.Migrate(ctx); err != nil {
			slog.Error("search index migration failed", "err", err)
			return 1
		}
		checkers = append(checkers, health.Checker{Name: "search-db", Check: pool.Ping})
		slog.Info("semantic search tier enabled", "model", embedder.ModelID())
	} else {
		slog.Warn("semantic search tier disabled; resolution stops at the phonetic tier")
	}

	// ── Resolver ──────────────────────────────────────────────────────────────
	var resolveOpts []resolve.Option
	if cfg.Search.SemanticFloor > 0 {
		resolveOpts = append(resolveOpts, resolve.WithSemanticFloor(cfg.Search.SemanticFloor))
	}
	if cfg.Search.TopK > 0 {
		resolveOpts = append(resolveOpts, resolve.WithSemanticTopK(cfg.Search.TopK))
	}
	var resolver *resolve.Resolver
	if index != nil {
		guarded := resilience.NewSearchBreaker(index, resilience.CircuitBreakerConfig{
			Name:         "search-index",
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		})
		resolver, err = resolve.New(ctx, store, guarded, resolveOpts...)
	} else {
		resolver, err = resolve.New(ctx, store, nil, resolveOpts...)
	}
	if err != nil {
		slog.Error("failed to build resolver", "err", err)
		return 1
	}

	// ── Analytics ─────────────────────────────────────────────────────────────
	analyticsStore, cleanup, err := buildAnalytics(ctx, cfg)
	if err != nil {
		slog.Error("failed to build analytics store", "err", err)
		return 1
	}
	if cleanup != nil {
		defer cleanup()
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	sessions := session.NewManager(session.WithLogger(logger))

	pipe, err := pipeline.New(pipeline.Config{
		Extractor:         extractor,
		Resolver:          resolver,
		Registry:          store,
		Sessions:          sessions,
		Classifier:        classifier,
		Analytics:         analyticsStore,
		Observer:          metrics,
		DefaultWeightUnit: string(cfg.Pipeline.DefaultWeightUnit),
		Logger:            logger,
	})
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	api := httpapi.New(pipe, health.New(checkers...), metrics, logger)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready", "addr", addr)
		var err error
		if cfg.Server.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Idle-session reaper.
	if reap := cfg.Pipeline.SessionIdleReap; reap > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(reap / 4)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := sessions.ReapIdle(reap); n > 0 {
						slog.Info("reaped idle sessions", "count", n)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai gets the dedicated SDK client; everything else goes through
	// any-llm-go's unified interface.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}

// buildOracle creates the primary completion provider and wraps it, together
// with any configured fallbacks, in a circuit-breaker fallback chain.
func buildOracle(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(cfg.Oracle.Provider)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Oracle.Provider.Name, err)
	}
	slog.Info("completion oracle created", "name", cfg.Oracle.Provider.Name, "model", primary.ModelID())

	if len(cfg.Oracle.Fallbacks) == 0 && cfg.Resilience.MaxFailures == 0 && cfg.Resilience.ResetTimeout == 0 {
		return primary, nil
	}

	group := resilience.NewLLMFallback(primary, cfg.Oracle.Provider.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		},
	})
	for _, entry := range cfg.Oracle.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback llm provider %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
		slog.Info("fallback oracle registered", "name", entry.Name, "model", p.ModelID())
	}
	return group, nil
}

// buildEmbedder creates the primary embedding provider and, when fallbacks
// are configured, wraps the chain in per-entry circuit breakers the same way
// buildOracle does for completions.
func buildEmbedder(reg *config.Registry, cfg *config.Config) (embeddings.Provider, error) {
	primary, err := reg.CreateEmbeddings(cfg.Embeddings.Provider)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Embeddings.Provider.Name, err)
	}
	if len(cfg.Embeddings.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewEmbeddingsFallback(primary, cfg.Embeddings.Provider.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		},
	})
	for _, entry := range cfg.Embeddings.Fallbacks {
		p, err := reg.CreateEmbeddings(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback embeddings provider %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
		slog.Info("fallback embedder registered", "name", entry.Name, "model", p.ModelID())
	}
	return group, nil
}

// buildAnalytics picks the record store from config: postgres, file, or none.
func buildAnalytics(ctx context.Context, cfg *config.Config) (analytics.Store, func(), error) {
	switch {
	case cfg.Analytics.PostgresDSN != "":
		pool, err := pgxpool.New(ctx, cfg.Analytics.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store := analytics.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("command analytics backed by postgres")
		return store, pool.Close, nil
	case cfg.Analytics.File != "":
		slog.Info("command analytics written to file", "path", cfg.Analytics.File)
		return analytics.NewFileStore(cfg.Analytics.File), nil, nil
	default:
		slog.Warn("command analytics disabled")
		return analytics.NopStore{}, nil, nil
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func confidenceConfig(c config.ConfidenceConfig) confidence.Config {
	return confidence.Config{
		AutoAccept:        c.AutoAccept,
		NeedsConfirmation: c.NeedsConfirmation,
		ResolverWeight:    c.ResolverWeight,
		ExtractionWeight:  c.ExtractionWeight,
		CorrectionPenalty: c.CorrectionPenalty,
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
