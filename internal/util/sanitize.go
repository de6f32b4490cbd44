package util

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Remote endpoints (Gitee in particular) reject supplementary-plane code
// points, so everything outside the BMP is dropped together with the BMP
// emoji blocks and the joiners and selectors that only make sense next to
// an emoji.
var unsafeRunes = runes.Predicate(func(r rune) bool {
	switch {
	case r == '\n', r == '\r', r == '\t':
		return false
	case r > 0xFFFF:
		return true
	case r == 0x200D, r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0x2600 && r <= 0x27BF, r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r == unicode.ReplacementChar:
		return true
	}
	return unicode.IsControl(r)
})

// SanitizeContent strips 4-byte UTF-8 sequences, emoji modifiers and control
// characters from s.
func SanitizeContent(s string) string {
	if s == "" {
		return s
	}
	out, _, err := transform.String(runes.Remove(unsafeRunes), s)
	if err != nil {
		return s
	}
	return out
}
