package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ContainsAny checks if the text contains any of the given keywords
func ContainsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// Fold lowercases text and strips diacritics so "Secuestró" matches "secuestro"
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// incidentTypes is checked in order; the first match wins
var incidentTypes = []struct {
	kind     string
	keywords []string
}{
	{"secuestro", []string{"secuestr", "privado de la libertad", "levanton"}},
	{"enfrentamiento", []string{"enfrentamiento", "balacera", "tiroteo", "disparos"}},
	{"asalto", []string{"asalto", "asaltan", "atraco"}},
	{"robo", []string{"robo", "roban", "hurto", "huachicol"}},
	{"bloqueo", []string{"bloqueo", "bloquean", "cierre carretero", "narcobloqueo"}},
}

// InferIncidentType infers the incident type from Spanish text
func InferIncidentType(text string) string {
	text = Fold(text)
	for _, it := range incidentTypes {
		if ContainsAny(text, it.keywords) {
			return it.kind
		}
	}
	return "general"
}
