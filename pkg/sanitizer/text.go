package sanitizer

import (
	"strings"
	"unicode"
)

const maxFreeTextLen = 1000

// TrimAndNormalize collapses internal whitespace runs to single spaces and
// trims the ends.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// SanitizeFreeText normalizes whitespace, strips control characters and caps
// length. Used for cancellation reasons and feedback comments.
func SanitizeFreeText(s string) string {
	s = TrimAndNormalize(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		result.WriteRune(r)
	}

	out := result.String()
	runes := []rune(out)
	if len(runes) > maxFreeTextLen {
		out = string(runes[:maxFreeTextLen])
	}
	return strings.TrimSpace(out)
}
