package location

import (
	"regexp"
	"strings"

	"github.com/placepal/placepal/internal/types"
)

// Trailing "in X" / "near X" / "around X" clause at the end of a message.
var explicitLocationRe = regexp.MustCompile(`(?i)^(.*?)\s+(?:in|near|around|at|close to)\s+([^,]+?)[?.!]*\s*$`)

// Generic tokens that look like a location but mean "use my coordinates".
// These must fall through to device coordinates, never to geocoding.
var genericLocationTokens = map[string]struct{}{
	"me":               {},
	"here":             {},
	"nearby":           {},
	"near me":          {},
	"around me":        {},
	"close by":         {},
	"this area":        {},
	"the area":         {},
	"my area":          {},
	"my location":      {},
	"current location": {},
	"town":             {},
	"the city":         {},
}

// ExtractExplicitLocation strips a trailing preposition-anchored location
// clause from the message. It returns the cleaned query plus the location
// evidence the message carries: TextLocation for a named place, NoLocation
// when the message names none. Generic phrases ("near me") are stripped
// from the query but rejected as location text.
func ExtractExplicitLocation(message string) (cleanedQuery string, loc types.GeoLocation) {
	trimmed := strings.TrimSpace(message)
	m := explicitLocationRe.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed, types.NoLocation()
	}

	query := strings.TrimSpace(m[1])
	phrase := strings.TrimSpace(m[2])

	if _, generic := genericLocationTokens[strings.ToLower(phrase)]; generic {
		return query, types.NoLocation()
	}
	return query, types.TextLocation(phrase)
}
