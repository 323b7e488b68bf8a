package config_test

import (
	"strings"
	"testing"

	"github.com/hagaybar/biblioplan/internal/config"
)

func TestValidate_JobQueueEnabledWithoutSourcesWarnsNotErrors(t *testing.T) {
	t.Parallel()
	yaml := `
job_queue:
  enabled: true
`
	// No enrichment sources configured: this is a soft warning (slog.Warn),
	// not a validation failure.
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
rate_limit:
  requests_per_minute: -5
enrichment:
  sources:
    - base_url: https://example.com
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "requests_per_minute") {
		t.Errorf("error should mention requests_per_minute, got: %v", err)
	}
	if !strings.Contains(errStr, "name") {
		t.Errorf("error should mention the missing source name, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	nlNames := config.ValidProviderNames["nl"]
	if len(nlNames) == 0 {
		t.Fatal("ValidProviderNames[\"nl\"] should not be empty")
	}
	found := false
	for _, n := range nlNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"nl\"] should contain \"openai\"")
	}
}
