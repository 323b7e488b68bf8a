// Package normalize implements the deterministic, reversible per-field
// normalization rules applied to raw MARC imprint and heading values: dates,
// places, publishers, and agent names. Every function here is pure — the
// only I/O is reading an alias map file at startup via LoadAliasMap.
package normalize

// Method enumerates the normalization technique that produced a value, so
// downstream consumers (Evidence, warnings) can explain how a field was
// derived rather than just what it resolved to.
type Method string

const (
	MethodYearExact      Method = "year_exact"
	MethodYearBracketed  Method = "year_bracketed"
	MethodYearCircaPM5   Method = "year_circa_pm5"
	MethodYearRange      Method = "year_range"
	MethodYearEmbedded   Method = "year_embedded"
	MethodUnparsed       Method = "unparsed"
	MethodMissing        Method = "missing"
)

// Confidence constants. These are heuristic, not calibrated probabilities —
// callers must not treat them as statistically meaningful beyond their
// relative ordering.
const (
	ConfidenceYearExact     = 0.99
	ConfidenceYearBracketed = 0.95
	ConfidenceYearCircaPM5  = 0.80
	ConfidenceYearRange     = 0.90
	ConfidenceYearEmbedded  = 0.85
	ConfidenceUnparsed      = 0.00
	ConfidenceMissing       = 0.00
	ConfidenceAliasMap      = 0.95
	ConfidenceCasefoldStrip = 0.80
)

// NormalizedDate is the result of normalize_date.
type NormalizedDate struct {
	Start         *int
	End           *int
	Label         string
	Confidence    float64
	Method        Method
	EvidencePaths []string
	Warnings      []string
}

// NormalizedField is the shared result shape for normalize_place,
// normalize_publisher, and normalize_agent: a casefolded, NFKC,
// whitespace-collapsed key plus the display form it was derived from.
type NormalizedField struct {
	Value         *string
	Display       string
	Confidence    float64
	Method        Method
	EvidencePaths []string
	Warnings      []string
}
