// Package location normalizes free-text Mexican place names and matches them
// against known locations.
//
// Every exported function is total: malformed or empty input degrades to an
// empty string, a false ok flag or a zero similarity. Nothing here panics or
// returns an error except ValidateFormat, whose job is to describe the problem.
package location

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText strips diacritics, uppercases text, trims it and collapses
// internal Unicode whitespace. "  tlalnepantla,   Edo Méx " becomes
// "TLALNEPANTLA, EDO MEX". NormalizeText(NormalizeText(x)) == NormalizeText(x).
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	// Marks are removed before and after uppercasing: some runes only gain
	// a simple uppercase form once their marks are gone, and uppercasing
	// can itself yield decomposable runes. Chains keep state, so build one
	// per call.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(unicode.ToUpper),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = strings.ToUpper(text)
	}

	return strings.Join(strings.Fields(out), " ")
}
