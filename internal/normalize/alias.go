package normalize

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/antzucaro/matchr"
)

// LoadAliasMap reads a flat JSON object of {raw_variant_key: canonical_key}
// from path and validates it against the alias map schema (string keys,
// string values, no nested objects).
func LoadAliasMap(path string) (AliasMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("normalize: open alias map %q: %w", path, err)
	}
	defer f.Close()
	return LoadAliasMapFromReader(f)
}

// LoadAliasMapFromReader decodes and validates an alias map from r.
func LoadAliasMapFromReader(r io.Reader) (AliasMap, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("normalize: decode alias map: %w", err)
	}

	m := make(AliasMap, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("normalize: alias map value for key %q must be a string, got %T", k, v)
		}
		m[k] = s
	}
	return m, nil
}

// suggestionThreshold is the minimum Jaro-Winkler similarity at which an
// unmatched key is reported as a likely alias-map typo rather than silently
// falling through to casefold_strip.
const suggestionThreshold = 0.92

// Suggestion is a candidate alias-map correction: key did not match any
// canonical entry exactly, but is within suggestionThreshold of one.
type Suggestion struct {
	Key        string
	ClosestTo  string
	Similarity float64
}

// SuggestAliases scans candidateKeys (casefolded keys that fell through to
// *_casefold_strip during a normalization batch) against the existing alias
// map's canonical values using Jaro-Winkler similarity, and returns keys
// that are suspiciously close to an existing canonical form — likely
// transcription variants worth adding to the alias map.
//
// This never mutates aliases; it is a supplemental reporting pass run after
// a batch normalize, not part of the per-value normalize_* contract.
func SuggestAliases(candidateKeys []string, aliases AliasMap) []Suggestion {
	canonical := make(map[string]struct{})
	for _, v := range aliases {
		canonical[v] = struct{}{}
	}

	var out []Suggestion
	for _, key := range candidateKeys {
		if _, exact := aliases[key]; exact {
			continue
		}
		best := ""
		bestScore := 0.0
		for c := range canonical {
			score := matchr.JaroWinkler(key, c, true)
			if score > bestScore {
				bestScore = score
				best = c
			}
		}
		if best != "" && bestScore >= suggestionThreshold && bestScore < 1.0 {
			out = append(out, Suggestion{Key: key, ClosestTo: best, Similarity: bestScore})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

// LogSuggestions writes alias-map suggestions to the structured logger so an
// operator curating the alias map can review them; it never applies them.
func LogSuggestions(suggestions []Suggestion) {
	for _, s := range suggestions {
		slog.Info("normalize: possible alias map addition",
			"key", s.Key, "closest_canonical", s.ClosestTo, "similarity", s.Similarity)
	}
}
