package engine

import "strings"

// DefaultExcerptLength is the excerpt size used by search and chat answers.
const DefaultExcerptLength = 500

const excerptLeadIn = 100

// Excerpt returns a window of content around the first case-insensitive
// occurrence of query. Positions are counted in runes.
func Excerpt(content, query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultExcerptLength
	}
	runes := []rune(content)
	// An empty query matches at the start, like a substring search would.
	pos := 0
	if query != "" {
		pos = runeIndexFold(runes, []rune(query))
	}
	if pos < 0 {
		if len(runes) <= maxLength {
			return content
		}
		return string(runes[:maxLength]) + "..."
	}

	start := max(0, pos-excerptLeadIn)
	end := min(len(runes), pos+maxLength-excerptLeadIn)
	end = max(end, start)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func runeIndexFold(haystack, needle []rune) int {
	if len(needle) > len(haystack) {
		return -1
	}
	lowerHay := []rune(strings.ToLower(string(haystack)))
	lowerNeedle := []rune(strings.ToLower(string(needle)))
	// Lowercasing can change rune counts for a handful of scripts; fall back
	// to a rune-by-rune fold comparison when it does.
	if len(lowerHay) == len(haystack) && len(lowerNeedle) == len(needle) {
		return runeIndex(lowerHay, lowerNeedle)
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if strings.EqualFold(string(haystack[i:i+len(needle)]), string(needle)) {
			return i
		}
	}
	return -1
}

func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
