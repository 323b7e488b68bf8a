package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged       bool
	NewLogLevel           LogLevel
	RateLimitChanged      bool
	NewRequestsPerMinute  int
	EnrichmentChanged     bool
	EnrichmentSourceDiffs []EnrichmentSourceDiff
}

// EnrichmentSourceDiff describes what changed for a single enrichment source
// between two configs.
type EnrichmentSourceDiff struct {
	Name           string
	BaseURLChanged bool
	Added          bool
	Removed        bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.RateLimit.RequestsPerMinute != new.RateLimit.RequestsPerMinute {
		d.RateLimitChanged = true
		d.NewRequestsPerMinute = new.RateLimit.RequestsPerMinute
	}

	oldSources := make(map[string]*EnrichmentSourceConfig, len(old.Enrichment.Sources))
	for i := range old.Enrichment.Sources {
		oldSources[string(old.Enrichment.Sources[i].Name)] = &old.Enrichment.Sources[i]
	}
	newSources := make(map[string]*EnrichmentSourceConfig, len(new.Enrichment.Sources))
	for i := range new.Enrichment.Sources {
		newSources[string(new.Enrichment.Sources[i].Name)] = &new.Enrichment.Sources[i]
	}

	for name, oldSrc := range oldSources {
		newSrc, exists := newSources[name]
		if !exists {
			d.EnrichmentSourceDiffs = append(d.EnrichmentSourceDiffs, EnrichmentSourceDiff{Name: name, Removed: true})
			d.EnrichmentChanged = true
			continue
		}
		if oldSrc.BaseURL != newSrc.BaseURL {
			d.EnrichmentSourceDiffs = append(d.EnrichmentSourceDiffs, EnrichmentSourceDiff{Name: name, BaseURLChanged: true})
			d.EnrichmentChanged = true
		}
	}
	for name := range newSources {
		if _, exists := oldSources[name]; !exists {
			d.EnrichmentSourceDiffs = append(d.EnrichmentSourceDiffs, EnrichmentSourceDiff{Name: name, Added: true})
			d.EnrichmentChanged = true
		}
	}

	return d
}
