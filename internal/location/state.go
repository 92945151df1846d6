package location

import (
	"strings"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
)

// Location is a parsed "CITY, STATE" pair in normalized form
type Location struct {
	City  string `json:"ciudad"`
	State string `json:"estado"`
}

// String renders the canonical "CITY, STATE" form
func (l Location) String() string {
	return Format(l.City, l.State)
}

type stateShortcut struct {
	pattern string // normalized substring
	state   string
}

// stateShortcuts is scanned top to bottom and the first pattern contained in
// the normalized city wins, so more specific patterns must come first
// ("NUEVO LEON" before "LEON", "EDO MEX" before anything that could overlap).
var stateShortcuts = []stateShortcut{
	{"AICM", "CDMX"},
	{"AIFA", "Estado de México"},
	{"CIUDAD DE MEXICO", "CDMX"},
	{"CDMX", "CDMX"},
	{"EDOMEX", "Estado de México"},
	{"EDO MEX", "Estado de México"},
	{"ESTADO DE MEXICO", "Estado de México"},
	{"TLALNEPANTLA", "Estado de México"},
	{"CUAUTITLAN", "Estado de México"},
	{"ECATEPEC", "Estado de México"},
	{"TOLUCA", "Estado de México"},
	{"NUEVO LAREDO", "Tamaulipas"},
	{"NUEVO LEON", "Nuevo León"},
	{"MONTERREY", "Nuevo León"},
	{"MTY", "Nuevo León"},
	{"GUADALAJARA", "Jalisco"},
	{"GDL", "Jalisco"},
	{"QUERETARO", "Querétaro"},
	{"QRO", "Querétaro"},
	{"SAN LUIS POTOSI", "San Luis Potosí"},
	{"SLP", "San Luis Potosí"},
	{"AGUASCALIENTES", "Aguascalientes"},
	{"AGS", "Aguascalientes"},
	{"PUEBLA", "Puebla"},
	{"CELAYA", "Guanajuato"},
	{"LEON", "Guanajuato"},
	{"MANZANILLO", "Colima"},
	{"LAZARO CARDENAS", "Michoacán"},
	{"VERACRUZ", "Veracruz"},
}

// AutoDetectState guesses the state for a city or shortcut such as "AICM".
func AutoDetectState(city string) (string, bool) {
	normalized := NormalizeText(city)
	if normalized == "" {
		return "", false
	}
	for _, s := range stateShortcuts {
		if strings.Contains(normalized, s.pattern) {
			return s.state, true
		}
	}
	return "", false
}

// ParseLocation splits a normalized "CITY, STATE" value. The input must
// contain exactly one comma.
func ParseLocation(location string) (Location, bool) {
	normalized := NormalizeText(location)
	if strings.Count(normalized, ",") != 1 {
		return Location{}, false
	}
	city, state, _ := strings.Cut(normalized, ",")
	return Location{
		City:  strings.TrimSpace(city),
		State: strings.TrimSpace(state),
	}, true
}

// ValidateFormat reports why location is not a usable "CITY, STATE" value
func ValidateFormat(location string) error {
	if NormalizeText(location) == "" {
		return apperrors.ValidationError{Field: "location", Message: "location is required"}
	}
	parsed, ok := ParseLocation(location)
	if !ok {
		return apperrors.ValidationError{Field: "location", Message: "expected format CITY, STATE"}
	}
	if parsed.City == "" {
		return apperrors.ValidationError{Field: "location", Message: "city is missing"}
	}
	if parsed.State == "" {
		return apperrors.ValidationError{Field: "location", Message: "state is missing"}
	}
	return nil
}

// Format joins city and state into the canonical normalized form. When state
// is empty it is detected from the city if possible.
func Format(city, state string) string {
	c := NormalizeText(city)
	s := NormalizeText(state)
	if s == "" {
		if detected, ok := AutoDetectState(c); ok {
			s = NormalizeText(detected)
		}
	}
	switch {
	case c == "":
		return s
	case s == "":
		return c
	default:
		return c + ", " + s
	}
}
