// Package keywords holds the substring matching shared by the intent accumulator,
// the persona router and the reply cascade. Matching is exact substring containment
// on lower-cased text; there is no stemming.
package keywords

import "strings"

// Turkish dotted capital I lower-cases to "i" plus a combining dot under the
// default mapping, which would never match catalog terms.
var folder = strings.NewReplacer("İ", "i")

// Normalize lower-cases text for matching.
func Normalize(text string) string {
	return strings.ToLower(folder.Replace(strings.TrimSpace(text)))
}

// ContainsAny reports whether normalized contains any of terms.
func ContainsAny(normalized string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

// CountMatches returns how many distinct terms occur in normalized.
func CountMatches(normalized string, terms []string) int {
	count := 0
	for _, term := range terms {
		if term != "" && strings.Contains(normalized, term) {
			count++
		}
	}
	return count
}
