package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// AliasMap maps a cleaned (casefolded, whitespace-collapsed) key to its
// canonical form. Loaded once at startup via LoadAliasMap and shared
// read-only across all normalize_* calls — it is never mutated after load.
type AliasMap map[string]string

// NormalizePlace cleans and resolves a raw MARC imprint place string.
func NormalizePlace(raw string, aliases AliasMap, evidencePath string) NormalizedField {
	return normalizeField(raw, aliases, "place", evidencePath)
}

// NormalizePublisher cleans and resolves a raw MARC imprint publisher string.
func NormalizePublisher(raw string, aliases AliasMap, evidencePath string) NormalizedField {
	return normalizeField(raw, aliases, "publisher", evidencePath)
}

// NormalizeAgent cleans and resolves a raw MARC agent (author/contributor)
// name string.
func NormalizeAgent(raw string, aliases AliasMap, evidencePath string) NormalizedField {
	return normalizeField(raw, aliases, "agent", evidencePath)
}

// NormalizeSubject cleans a raw MARC subject heading. Subjects have no
// curated alias map in spec.md; aliases may be nil, in which case every
// non-empty value resolves via casefold_strip.
func NormalizeSubject(raw string, aliases AliasMap, evidencePath string) NormalizedField {
	return normalizeField(raw, aliases, "subject", evidencePath)
}

func normalizeField(raw string, aliases AliasMap, kind string, evidencePath string) NormalizedField {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NormalizedField{
			Method:        MethodMissing,
			Confidence:    ConfidenceMissing,
			EvidencePaths: []string{evidencePath},
		}
	}

	cleaned := clean(trimmed)
	key := casefold(cleaned)

	if canonical, ok := aliases[key]; ok {
		v := canonical
		return NormalizedField{
			Value:         &v,
			Display:       cleaned,
			Confidence:    ConfidenceAliasMap,
			Method:        Method(kind + "_alias_map"),
			EvidencePaths: []string{evidencePath},
		}
	}

	v := key
	return NormalizedField{
		Value:         &v,
		Display:       cleaned,
		Confidence:    ConfidenceCasefoldStrip,
		Method:        Method(kind + "_casefold_strip"),
		EvidencePaths: []string{evidencePath},
	}
}

// clean implements: trim -> strip trailing :,;/ -> remove surrounding
// brackets -> NFKC -> collapse whitespace.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ":,;/ \t")
	s = strings.TrimSpace(s)
	s = stripSurroundingBrackets(s)
	s = norm.NFKC.String(s)
	s = collapseWhitespace(s)
	return s
}

func stripSurroundingBrackets(s string) string {
	pairs := [][2]byte{{'[', ']'}, {'(', ')'}}
	for _, p := range pairs {
		if len(s) >= 2 && s[0] == p[0] && s[len(s)-1] == p[1] {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// casefold lowercases a cleaned string for use as a normalized key. Go's
// standard library has no full Unicode case-folding primitive beyond
// strings.ToLower, which is the idiomatic approximation used throughout the
// corpus for casefolded keys.
func casefold(s string) string {
	return strings.ToLower(s)
}
