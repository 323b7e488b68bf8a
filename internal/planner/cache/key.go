package cache

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Key canonicalizes a free-text question into the Plan Cache key: trim,
// collapse internal whitespace, casefold, then JSON-encode the result so
// the key is stable byte-for-byte regardless of incidental formatting
// differences between two equivalent questions.
func Key(question string) string {
	normalized := collapseWhitespace(strings.ToLower(strings.TrimSpace(question)))
	encoded, _ := json.Marshal(normalized) // string marshaling never fails
	return string(encoded)
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
