package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reYearExact     = regexp.MustCompile(`^\d{4}$`)
	reYearBracketed = regexp.MustCompile(`^\[(\d{4})\]$`)
	reYearCirca     = regexp.MustCompile(`^c\.?\s*(\d{4})$`)
	reYearRange     = regexp.MustCompile(`^(\d{4})[-/](\d{4})$`)
	reYearEmbedded  = regexp.MustCompile(`(\d{4})`)
)

// NormalizeDate applies the date rules top to bottom, first match wins, and
// returns a NormalizedDate. evidencePath is the MARC source path the raw
// value was read from (e.g. "260[0]$c") and is copied verbatim into the
// result for Evidence construction.
func NormalizeDate(raw string, evidencePath string) NormalizedDate {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NormalizedDate{
			Method:     MethodMissing,
			Confidence: ConfidenceMissing,
		}
	}

	if reYearExact.MatchString(trimmed) {
		y := mustAtoi(trimmed)
		return yearPoint(y, MethodYearExact, ConfidenceYearExact, evidencePath)
	}

	if m := reYearBracketed.FindStringSubmatch(trimmed); m != nil {
		y := mustAtoi(m[1])
		return yearPoint(y, MethodYearBracketed, ConfidenceYearBracketed, evidencePath)
	}

	if m := reYearCirca.FindStringSubmatch(trimmed); m != nil {
		y := mustAtoi(m[1])
		start, end := y-5, y+5
		return NormalizedDate{
			Start: &start, End: &end,
			Label:         fmt.Sprintf("c. %d", y),
			Confidence:    ConfidenceYearCircaPM5,
			Method:        MethodYearCircaPM5,
			EvidencePaths: []string{evidencePath},
		}
	}

	if m := reYearRange.FindStringSubmatch(trimmed); m != nil {
		s, e := mustAtoi(m[1]), mustAtoi(m[2])
		if s <= e {
			return NormalizedDate{
				Start: &s, End: &e,
				Label:         fmt.Sprintf("%d-%d", s, e),
				Confidence:    ConfidenceYearRange,
				Method:        MethodYearRange,
				EvidencePaths: []string{evidencePath},
			}
		}
		// start > end: fall through to rule 5 (embedded year).
	}

	if m := reYearEmbedded.FindStringSubmatch(trimmed); m != nil {
		y := mustAtoi(m[1])
		d := yearPoint(y, MethodYearEmbedded, ConfidenceYearEmbedded, evidencePath)
		d.Warnings = append(d.Warnings, fmt.Sprintf("embedded year %d extracted from unstructured date %q", y, trimmed))
		return d
	}

	return NormalizedDate{
		Method:        MethodUnparsed,
		Confidence:    ConfidenceUnparsed,
		EvidencePaths: []string{evidencePath},
		Warnings:      []string{fmt.Sprintf("could not parse date %q", trimmed)},
	}
}

func yearPoint(y int, method Method, confidence float64, evidencePath string) NormalizedDate {
	start, end := y, y
	return NormalizedDate{
		Start: &start, End: &end,
		Label:         strconv.Itoa(y),
		Confidence:    confidence,
		Method:        method,
		EvidencePaths: []string{evidencePath},
	}
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// Regexes guarantee digit-only input; a conversion failure here
		// indicates a contradiction between the pattern and strconv, not a
		// data error.
		panic(fmt.Sprintf("normalize: invalid digits captured by regex: %q", s))
	}
	return n
}
