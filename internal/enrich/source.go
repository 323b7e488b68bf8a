package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hagaybar/biblioplan/pkg/enrich"
)

// disambiguationThreshold is the minimum match score a name-search result
// must clear to be accepted, per spec.md §4.7 step 3 ("accept the top
// result only if a scoring threshold is met").
const disambiguationThreshold = 0.75

// source is one external knowledge base the Enrichment service can consult.
// Each source owns its own circuit breaker (via Service) and shares the
// Service's per-host rate limiter.
type source struct {
	name       enrich.Source
	host       string
	baseURL    string
	httpClient *http.Client
}

// NewSource builds a source backed by an HTTP knowledge-base API at baseURL
// (e.g. Wikidata's or VIAF's REST endpoints), for use with New's sources
// argument.
func NewSource(name enrich.Source, baseURL string, client *http.Client) (*source, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("enrich: invalid source base URL %q: %w", baseURL, err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &source{name: name, host: u.Host, baseURL: baseURL, httpClient: client}, nil
}

// SourceConfig names one knowledge-base source and its base URL, for use
// with BuildSources.
type SourceConfig struct {
	Name    enrich.Source
	BaseURL string
}

// BuildSources constructs a source for each entry in configs, in order. The
// resulting slice is ready to pass to New. client is shared across all
// sources; pass nil to let each source fall back to its own default.
func BuildSources(configs []SourceConfig, client *http.Client) ([]*source, error) {
	sources := make([]*source, 0, len(configs))
	for _, c := range configs {
		s, err := NewSource(c.Name, c.BaseURL, client)
		if err != nil {
			return nil, fmt.Errorf("enrich: build source %s: %w", c.Name, err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// kbEntity is the subset of a knowledge-base entity response this service
// understands. Sources are expected to normalize their native response into
// this shape before returning.
type kbEntity struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Score       float64        `json:"score"`
	PersonInfo  map[string]any `json:"person_info,omitempty"`
	PlaceInfo   map[string]any `json:"place_info,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// lookupByXref resolves authorityID (e.g. a VIAF or LOC id extracted from
// MARC $0) to an entity with a single GET to the knowledge base's /xref
// endpoint and returns the entity carried in that response. No second
// request for detail by the resolved id is made.
func (s *source) lookupByXref(ctx context.Context, authorityID string) (kbEntity, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/xref", nil)
	if err != nil {
		return kbEntity{}, false, fmt.Errorf("enrich: %s: build xref request: %w", s.name, err)
	}
	q := req.URL.Query()
	q.Set("authority_id", authorityID)
	req.URL.RawQuery = q.Encode()

	return s.fetchEntity(req)
}

// lookupByName searches the knowledge base by name, restricted to
// entityType, and returns the top match if it clears
// disambiguationThreshold.
func (s *source) lookupByName(ctx context.Context, entityType, name string) (kbEntity, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search", nil)
	if err != nil {
		return kbEntity{}, false, fmt.Errorf("enrich: %s: build search request: %w", s.name, err)
	}
	q := req.URL.Query()
	q.Set("type", entityType)
	q.Set("name", name)
	req.URL.RawQuery = q.Encode()

	entity, ok, err := s.fetchEntity(req)
	if err != nil || !ok {
		return kbEntity{}, false, err
	}
	if entity.Score < disambiguationThreshold {
		return kbEntity{}, false, nil
	}
	return entity, true, nil
}

func (s *source) fetchEntity(req *http.Request) (kbEntity, bool, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return kbEntity{}, false, fmt.Errorf("enrich: %s: request: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return kbEntity{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return kbEntity{}, false, fmt.Errorf("enrich: %s: unexpected status %d", s.name, resp.StatusCode)
	}

	var entity kbEntity
	if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
		return kbEntity{}, false, fmt.Errorf("enrich: %s: decode response: %w", s.name, err)
	}
	if entity.ID == "" {
		return kbEntity{}, false, nil
	}
	return entity, true, nil
}
