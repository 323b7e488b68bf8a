package config_test

import (
	"testing"

	"github.com/hagaybar/biblioplan/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogLevelInfo},
		Enrichment: config.EnrichmentConfig{
			Sources: []config.EnrichmentSourceConfig{{Name: "wikidata", BaseURL: "https://a.example.com"}},
		},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.RateLimitChanged {
		t.Error("expected RateLimitChanged=false for identical configs")
	}
	if d.EnrichmentChanged {
		t.Error("expected EnrichmentChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogLevelInfo}}
	newCfg := &config.Config{Server: config.ServerConfig{LogLevel: config.LogLevelDebug}}

	d := config.Diff(old, newCfg)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogLevelDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_RateLimitChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{RateLimit: config.RateLimitConfig{RequestsPerMinute: 10}}
	newCfg := &config.Config{RateLimit: config.RateLimitConfig{RequestsPerMinute: 20}}

	d := config.Diff(old, newCfg)
	if !d.RateLimitChanged {
		t.Error("expected RateLimitChanged=true")
	}
	if d.NewRequestsPerMinute != 20 {
		t.Errorf("expected NewRequestsPerMinute=20, got %d", d.NewRequestsPerMinute)
	}
}

func TestDiff_EnrichmentSourceBaseURLChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Enrichment: config.EnrichmentConfig{
			Sources: []config.EnrichmentSourceConfig{{Name: "wikidata", BaseURL: "https://a.example.com"}},
		},
	}
	newCfg := &config.Config{
		Enrichment: config.EnrichmentConfig{
			Sources: []config.EnrichmentSourceConfig{{Name: "wikidata", BaseURL: "https://b.example.com"}},
		},
	}

	d := config.Diff(old, newCfg)
	if !d.EnrichmentChanged {
		t.Error("expected EnrichmentChanged=true")
	}
	if len(d.EnrichmentSourceDiffs) != 1 || !d.EnrichmentSourceDiffs[0].BaseURLChanged {
		t.Errorf("expected one BaseURLChanged diff, got %+v", d.EnrichmentSourceDiffs)
	}
}

func TestDiff_EnrichmentSourceAddedAndRemoved(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Enrichment: config.EnrichmentConfig{
			Sources: []config.EnrichmentSourceConfig{
				{Name: "wikidata", BaseURL: "https://a.example.com"},
				{Name: "viaf", BaseURL: "https://viaf.example.com"},
			},
		},
	}
	newCfg := &config.Config{
		Enrichment: config.EnrichmentConfig{
			Sources: []config.EnrichmentSourceConfig{
				{Name: "wikidata", BaseURL: "https://a.example.com"},
				{Name: "loc", BaseURL: "https://loc.example.com"},
			},
		},
	}

	d := config.Diff(old, newCfg)
	if !d.EnrichmentChanged {
		t.Error("expected EnrichmentChanged=true")
	}
	var addedLOC, removedVIAF bool
	for _, sd := range d.EnrichmentSourceDiffs {
		if sd.Name == "loc" && sd.Added {
			addedLOC = true
		}
		if sd.Name == "viaf" && sd.Removed {
			removedVIAF = true
		}
	}
	if !addedLOC {
		t.Error("expected loc Added=true")
	}
	if !removedVIAF {
		t.Error("expected viaf Removed=true")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogLevelInfo},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 10},
	}
	newCfg := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogLevelWarn},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 5},
	}

	d := config.Diff(old, newCfg)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.RateLimitChanged {
		t.Error("expected RateLimitChanged=true")
	}
}
