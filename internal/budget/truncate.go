package budget

import "unicode/utf8"

// DefaultMaxChars is the article length sent to the model.
const DefaultMaxChars = 100_000

// TruncationMarker is appended to text cut by Truncate.
const TruncationMarker = "\n\n[Article continues but was truncated due to length...]"

// Truncate keeps the first maxChars characters of s and appends
// TruncationMarker when anything was dropped. Cuts never split a rune.
// maxChars <= 0 disables truncation.
func Truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i] + TruncationMarker, true
		}
		n++
	}
	return s, false
}
