// Package enrich defines the data model shared between the Dialogue Engine
// and the Enrichment service: the EnrichmentResult a lookup produces and the
// Enricher interface the Dialogue Engine calls against.
package enrich

import (
	"context"
	"time"
)

// Source identifies which knowledge base (or none) produced a Result.
type Source string

const (
	SourceWikidata Source = "wikidata"
	SourceVIAF     Source = "viaf"
	SourceLOC      Source = "loc"
	SourceNLI      Source = "nli"
	SourceNone     Source = "none"
)

// IsValid reports whether s is a recognised, queryable knowledge-base
// source. SourceNone is deliberately excluded: it marks a terminal miss, it
// is never something a caller configures.
func (s Source) IsValid() bool {
	switch s {
	case SourceWikidata, SourceVIAF, SourceLOC, SourceNLI:
		return true
	}
	return false
}

// Result is one entity's enrichment data, as cached and served by the
// Enrichment service. A terminal miss is represented by Miss, not a zero
// value constructed ad hoc.
type Result struct {
	EntityType    string `json:"entity_type"`
	EntityValue   string `json:"entity_value"`
	NormalizedKey string `json:"normalized_key"`

	WikidataID string `json:"wikidata_id,omitempty"`
	VIAFID     string `json:"viaf_id,omitempty"`
	ISNIID     string `json:"isni_id,omitempty"`
	LOCID      string `json:"loc_id,omitempty"`
	NLIID      string `json:"nli_id,omitempty"`

	PersonInfo map[string]any `json:"person_info,omitempty"`
	PlaceInfo  map[string]any `json:"place_info,omitempty"`

	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`

	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`

	Raw map[string]any `json:"raw,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Miss returns the terminal-miss Result for an entity that could not be
// resolved by any source.
func Miss(entityType, entityValue, normalizedKey string) Result {
	return Result{
		EntityType:    entityType,
		EntityValue:   entityValue,
		NormalizedKey: normalizedKey,
		Source:        SourceNone,
		Confidence:    0,
	}
}

// Enricher resolves an (entity_type, entity_value) pair to a Result. The
// Dialogue Engine depends on this interface rather than a concrete
// implementation so it can be wired against the real Enrichment service or a
// test double.
type Enricher interface {
	Enrich(ctx context.Context, entityType, entityValue string) (Result, error)
}
