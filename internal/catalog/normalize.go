package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases text, strips diacritics and collapses internal
// whitespace. Every matching strategy compares normalized forms, so
// "Conceder Benefício" and "conceder beneficio" are the same activity.
// Total: never fails, empty input yields empty output.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	stripped, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		// Malformed UTF-8 only; fall back to the lowered input.
		stripped = lowered
	}
	return strings.Join(strings.Fields(stripped), " ")
}
