package enrich

import "strings"

// normalizedKey collapses entityValue to the case/whitespace-insensitive
// form used as the cache key and the singleflight key, alongside
// entityType — grounded on internal/planner/cache/key.go's question
// normalization, applied here to entity names instead of questions.
func normalizedKey(entityValue string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(entityValue))), " ")
}

// singleflightKey identifies one in-flight or cached lookup.
func singleflightKey(entityType, entityValue string) string {
	return entityType + "|" + normalizedKey(entityValue)
}
