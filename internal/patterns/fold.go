package patterns

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold upper-cases s and strips diacritics so that "Donación" and "DONACION"
// compare equal. Ñ folds to N.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(out)
}

// ContainsWord reports whether the folded text contains the folded keyword
// as a whole word or phrase.
func ContainsWord(foldedText, keyword string) bool {
	kw := Fold(keyword)
	if kw == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(foldedText[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		if isBoundary(foldedText, start-1) && isBoundary(foldedText, end) {
			return true
		}
		from = start + 1
	}
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z')
}
