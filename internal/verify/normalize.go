package verify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a name for comparison: lower case, no diacritics, only
// [a-z0-9] and single spaces. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), strings.ToLower(text))
	if err != nil {
		stripped = strings.ToLower(text)
	}
	var b strings.Builder
	b.Grow(len(stripped))
	pendingSpace := false
	for _, r := range stripped {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}
