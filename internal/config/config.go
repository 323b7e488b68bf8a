// Package config provides the configuration schema, loader, and provider
// registry for the bibliographic discovery service.
package config

import "github.com/hagaybar/biblioplan/pkg/enrich"

// Config is the root configuration structure for the service.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Planner    PlannerConfig    `yaml:"planner"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	JobQueue   JobQueueConfig   `yaml:"job_queue"`
}

// ServerConfig holds network and logging settings for the chat/WS transport.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel selects the slog verbosity level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// ProvidersConfig declares which implementation compiles QueryPlans from
// natural language (spec.md §4.3 Stage A). Name is looked up in the
// [Registry].
type ProvidersConfig struct {
	NL ProviderEntry `yaml:"nl"`
}

// ProviderEntry is the common configuration block for a pluggable provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anyllm").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API. Config loading
	// does not fill it from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// PlannerConfig configures the Plan Compiler's Stage A interpreter and Plan
// Cache (spec.md §4.3).
type PlannerConfig struct {
	// CachePath is the append-only file backing the Plan Cache. A blank value
	// logs a warning and DefaultPlanCachePath is used.
	CachePath string `yaml:"cache_path"`

	// FallbackNL names a second NL provider tried when the primary fails or
	// its circuit breaker is open. Looked up in the same [Registry] as Providers.NL.
	// Empty means no fallback is configured.
	FallbackNL ProviderEntry `yaml:"fallback_nl"`
}

// RateLimitConfig bounds the chat endpoint's per-IP request rate (spec.md §5).
type RateLimitConfig struct {
	// RequestsPerMinute is the token bucket size/refill rate. Zero defaults
	// to 10, the spec's stated default.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// EnrichmentConfig configures the Enrichment service (spec.md §4.7).
type EnrichmentConfig struct {
	// Sources lists the external knowledge bases to consult, tried in order.
	Sources []EnrichmentSourceConfig `yaml:"sources"`

	// TTLHours is the cache lifetime for a fetched result. Zero defaults to
	// enrich.DefaultTTL.
	TTLHours int `yaml:"ttl_hours"`

	// RequestsPerSecondPerHost bounds outbound requests to any one source
	// host. Zero defaults to 1, matching spec.md's "at least 1s between
	// outbound requests to the same host."
	RequestsPerSecondPerHost float64 `yaml:"requests_per_second_per_host"`

	// ReapIntervalMinutes is how often the background reaper sweeps expired
	// cache rows. Zero defaults to 60.
	ReapIntervalMinutes int `yaml:"reap_interval_minutes"`
}

// EnrichmentSourceConfig configures one external knowledge-base source.
type EnrichmentSourceConfig struct {
	// Name selects the knowledge base. Valid values: "wikidata", "viaf",
	// "loc", "nli".
	Name enrich.Source `yaml:"name"`

	// BaseURL is the source's REST API endpoint.
	BaseURL string `yaml:"base_url"`
}

// NormalizeConfig configures the Normalizer's alias maps (spec.md §4.1).
type NormalizeConfig struct {
	// PlaceAliasFile, PublisherAliasFile, AgentAliasFile point at the flat
	// JSON alias maps (spec.md §6.3) for their respective entity kind. A
	// blank path means no alias map is loaded for that kind.
	PlaceAliasFile     string `yaml:"place_alias_file"`
	PublisherAliasFile string `yaml:"publisher_alias_file"`
	AgentAliasFile     string `yaml:"agent_alias_file"`

	// FuzzySuggestThreshold is a Jaro-Winkler similarity that Validate
	// range-checks. The alias suggestion pass does not read it; it uses its
	// own fixed threshold of 0.92. No default is applied.
	FuzzySuggestThreshold float64 `yaml:"fuzzy_suggest_threshold"`
}

// JobQueueConfig holds the bulk/pre-enrichment job queue settings (spec.md
// §4.7's job queue; on-demand is the default path). No worker is started from
// these settings: Validate only warns when Enabled is set without any
// enrichment source.
type JobQueueConfig struct {
	// Enabled is read only by that validation warning. False by default.
	Enabled bool `yaml:"enabled"`

	// PollIntervalSeconds is decoded but not read by any component, and no
	// default is applied.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}
