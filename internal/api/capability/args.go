package capability

import (
	"strings"

	"github.com/placepal/placepal/internal/types"
)

// ArgConcepts are the concept values the pipeline wants to pass, regardless
// of what the capability chose to call its parameters. Nil pointers mean
// "not applicable this call".
type ArgConcepts struct {
	Lat          *float64
	Lng          *float64
	RadiusMeters *int
	Keyword      *string
	Address      *string
	PageToken    *string
	Limit        *int
	Fields       []string
}

// Ordered candidate parameter names per concept. Earlier entries are
// preferred; matching is case-insensitive substring with exact-name wins.
var (
	latCandidates    = []string{"latitude", "lat"}
	lngCandidates    = []string{"longitude", "lng", "lon"}
	radiusCandidates = []string{"radius", "radius_m", "radius_meters", "distance"}
	// Composite fallback when no individual lat/lng parameters exist.
	locationCandidates  = []string{"location", "center", "coordinates", "coords"}
	keywordCandidates   = []string{"keyword", "query", "text", "search", "q"}
	addressCandidates   = []string{"address", "location_text", "place", "query", "text", "q"}
	pageTokenCandidates = []string{"page_token", "pagetoken", "next_page", "cursor", "page"}
	limitCandidates     = []string{"limit", "max_results", "maxresults", "count", "top"}
	fieldsCandidates    = []string{"fields", "field_mask", "fieldmask"}
)

// BuildArgs maps concept values onto whatever parameter names the capability
// actually declares. Pure: same capability shape and values, same payload.
func BuildArgs(entry *types.ToolCatalogEntry, concepts ArgConcepts) map[string]any {
	args := make(map[string]any)

	latParam := matchParam(entry, latCandidates)
	lngParam := matchParam(entry, lngCandidates)

	switch {
	case latParam != "" && lngParam != "":
		if concepts.Lat != nil {
			args[latParam] = *concepts.Lat
		}
		if concepts.Lng != nil {
			args[lngParam] = *concepts.Lng
		}
	case concepts.Lat != nil && concepts.Lng != nil:
		// No individual lat/lng parameters: fall back to a composite
		// location object, and only to that.
		if locParam := matchParam(entry, locationCandidates); locParam != "" {
			args[locParam] = map[string]any{"lat": *concepts.Lat, "lng": *concepts.Lng}
		}
	}

	if concepts.RadiusMeters != nil {
		if p := matchParam(entry, radiusCandidates); p != "" {
			args[p] = *concepts.RadiusMeters
		}
	}
	if concepts.Keyword != nil {
		if p := matchParam(entry, keywordCandidates); p != "" {
			args[p] = *concepts.Keyword
		}
	}
	if concepts.Address != nil {
		if p := matchParam(entry, addressCandidates); p != "" {
			args[p] = *concepts.Address
		}
	}
	if concepts.PageToken != nil && *concepts.PageToken != "" {
		if p := matchParam(entry, pageTokenCandidates); p != "" {
			args[p] = *concepts.PageToken
		}
	}
	if concepts.Limit != nil {
		if p := matchParam(entry, limitCandidates); p != "" {
			args[p] = *concepts.Limit
		}
	}
	if len(concepts.Fields) > 0 {
		if p := matchParam(entry, fieldsCandidates); p != "" {
			args[p] = strings.Join(concepts.Fields, ",")
		}
	}
	return args
}

// matchParam finds the declared parameter best matching the ordered
// candidate list: an exact (case-insensitive) match wins outright, otherwise
// the first declared parameter containing the earliest candidate.
func matchParam(entry *types.ToolCatalogEntry, candidates []string) string {
	for _, cand := range candidates {
		substringHit := ""
		for _, param := range entry.Parameters {
			lp := strings.ToLower(param)
			if lp == cand {
				return param
			}
			if substringHit == "" && strings.Contains(lp, cand) {
				substringHit = param
			}
		}
		if substringHit != "" {
			return substringHit
		}
	}
	return ""
}
