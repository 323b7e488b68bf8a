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
	"nl": {"openai", "anyllm"},
}

// DefaultPlanCachePath is used when planner.cache_path is left blank.
const DefaultPlanCachePath = "plan_cache.jsonl"

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
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// NL provider
	validateProviderName("nl", cfg.Providers.NL.Name)
	if cfg.Providers.NL.Name == "" {
		slog.Warn("no NL provider configured; plan compilation will fail with NLUnavailable")
	}
	if cfg.Planner.FallbackNL.Name != "" {
		validateProviderName("nl", cfg.Planner.FallbackNL.Name)
	}

	// Planner
	if cfg.Planner.CachePath == "" {
		slog.Warn("planner.cache_path not set; defaulting to " + DefaultPlanCachePath)
	}

	// Rate limit
	if cfg.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_minute %d must not be negative", cfg.RateLimit.RequestsPerMinute))
	}

	// Enrichment sources
	seenSources := make(map[string]int, len(cfg.Enrichment.Sources))
	for i, src := range cfg.Enrichment.Sources {
		prefix := fmt.Sprintf("enrichment.sources[%d]", i)
		if src.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if !src.Name.IsValid() {
			errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: wikidata, viaf, loc, nli", prefix, src.Name))
		} else if prev, ok := seenSources[string(src.Name)]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of enrichment.sources[%d]", prefix, src.Name, prev))
		} else {
			seenSources[string(src.Name)] = i
		}
		if src.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required", prefix))
		}
	}
	if cfg.Enrichment.RequestsPerSecondPerHost < 0 {
		errs = append(errs, fmt.Errorf("enrichment.requests_per_second_per_host must not be negative"))
	}

	// Normalize
	if cfg.Normalize.FuzzySuggestThreshold != 0 {
		if cfg.Normalize.FuzzySuggestThreshold < 0 || cfg.Normalize.FuzzySuggestThreshold > 1 {
			errs = append(errs, fmt.Errorf("normalize.fuzzy_suggest_threshold %.2f is out of range [0, 1]", cfg.Normalize.FuzzySuggestThreshold))
		}
	}

	// Job queue
	if cfg.JobQueue.Enabled && len(cfg.Enrichment.Sources) == 0 {
		slog.Warn("job_queue.enabled is true but no enrichment sources are configured; queued jobs will never resolve")
	}

	return errors.Join(errs...)
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
