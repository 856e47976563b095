package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Suspicious but workable values are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when server.tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when server.tls is set"))
		}
	}

	// Oracle
	if cfg.Oracle.Provider.Name == "" {
		errs = append(errs, errors.New("oracle.provider.name is required; commands cannot be interpreted without an extraction model"))
	}
	validateProviderName("llm", cfg.Oracle.Provider.Name)
	for i, fb := range cfg.Oracle.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("oracle.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if cfg.Oracle.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("oracle.request_timeout %s is negative", cfg.Oracle.RequestTimeout))
	}
	if cfg.Oracle.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("oracle.max_tokens %d is negative", cfg.Oracle.MaxTokens))
	}

	// Embeddings ↔ search
	validateProviderName("embeddings", cfg.Embeddings.Provider.Name)
	for i, fb := range cfg.Embeddings.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("embeddings.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("embeddings", fb.Name)
	}
	if len(cfg.Embeddings.Fallbacks) > 0 && cfg.Embeddings.Provider.Name == "" {
		errs = append(errs, errors.New("embeddings.fallbacks are set but embeddings.provider is not configured"))
	}
	if cfg.Embeddings.Provider.Name != "" && cfg.Embeddings.Dimensions <= 0 {
		slog.Warn("embeddings.provider is configured but embeddings.dimensions is not set; defaulting to 1536")
	}
	if cfg.Search.PostgresDSN != "" && cfg.Embeddings.Provider.Name == "" {
		errs = append(errs, errors.New("search.postgres_dsn is set but embeddings.provider is not configured; the semantic tier needs an embedding model"))
	}
	if cfg.Search.PostgresDSN == "" {
		slog.Warn("search.postgres_dsn is empty; exercise resolution will stop at the phonetic tier")
	}
	if cfg.Search.SemanticFloor < 0 || cfg.Search.SemanticFloor > 1 {
		errs = append(errs, fmt.Errorf("search.semantic_floor %.2f is out of range [0, 1]", cfg.Search.SemanticFloor))
	}
	if cfg.Search.TopK < 0 {
		errs = append(errs, fmt.Errorf("search.top_k %d is negative", cfg.Search.TopK))
	}

	// Registry
	if cfg.Registry.SeedFile == "" && cfg.Registry.PostgresDSN == "" {
		errs = append(errs, errors.New("registry.seed_file or registry.postgres_dsn is required; there is no exercise catalog without one"))
	}

	// Analytics
	if cfg.Analytics.File == "" && cfg.Analytics.PostgresDSN == "" {
		slog.Warn("analytics.file and analytics.postgres_dsn are both empty; handled commands will not be recorded")
	}

	// Confidence thresholds
	errs = append(errs, validateConfidence(cfg.Confidence)...)

	// Pipeline
	if cfg.Pipeline.DefaultWeightUnit != "" && !cfg.Pipeline.DefaultWeightUnit.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.default_weight_unit %q is invalid; valid values: lbs, kg", cfg.Pipeline.DefaultWeightUnit))
	}
	if cfg.Pipeline.SessionIdleReap < 0 {
		errs = append(errs, fmt.Errorf("pipeline.session_idle_reap %s is negative", cfg.Pipeline.SessionIdleReap))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d is negative", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout %s is negative", cfg.Resilience.ResetTimeout))
	}

	return errors.Join(errs...)
}

func validateConfidence(c ConfidenceConfig) []error {
	var errs []error
	check := func(field string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("confidence.%s %.2f is out of range [0, 1]", field, v))
		}
	}
	check("auto_accept", c.AutoAccept)
	check("needs_confirmation", c.NeedsConfirmation)
	check("resolver_weight", c.ResolverWeight)
	check("extraction_weight", c.ExtractionWeight)
	check("correction_penalty", c.CorrectionPenalty)

	if c.AutoAccept != 0 && c.NeedsConfirmation != 0 && c.AutoAccept < c.NeedsConfirmation {
		errs = append(errs, fmt.Errorf("confidence.auto_accept %.2f is below confidence.needs_confirmation %.2f", c.AutoAccept, c.NeedsConfirmation))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
