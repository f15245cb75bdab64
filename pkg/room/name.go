package room

import "strings"

// NormalizeName lowercases name, joins whitespace separated words with
// hyphens and drops every rune outside [a-z0-9-]. Applying it twice
// yields the same result as applying it once.
func NormalizeName(name string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(name)), "-")

	var b strings.Builder
	for _, r := range joined {
		if r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
