package types

// DecisionKind discriminates the RecommendDecision union.
type DecisionKind string

const (
	DecisionAskLocation DecisionKind = "ask_location"
	DecisionGeocode     DecisionKind = "geocode"
	DecisionSearch      DecisionKind = "search"
)

// SearchSource records where the coordinates of a Search decision came from.
type SearchSource string

const (
	SearchSourceRequest  SearchSource = "request"
	SearchSourceSession  SearchSource = "session"
	SearchSourceGeocoded SearchSource = "geocoded"
)

// RecommendDecision is the per-turn decision of the session state machine.
// It is a closed sum: a Search decision always carries fully resolved
// coordinates, a Geocode decision always carries the text to resolve, and
// partial combinations are unrepresentable through the constructors below.
type RecommendDecision struct {
	Kind         DecisionKind
	Keyword      string
	LocationText string
	Lat          float64
	Lng          float64
	RadiusMeters int
	Source       SearchSource
}

// AskLocationDecision asks the user for a location before searching.
func AskLocationDecision(keyword string) RecommendDecision {
	return RecommendDecision{Kind: DecisionAskLocation, Keyword: keyword}
}

// GeocodeDecision resolves locationText before searching for keyword.
func GeocodeDecision(keyword, locationText string) RecommendDecision {
	return RecommendDecision{Kind: DecisionGeocode, Keyword: keyword, LocationText: locationText}
}

// SearchDecision searches immediately with resolved coordinates.
func SearchDecision(keyword string, lat, lng float64, radiusMeters int, source SearchSource) RecommendDecision {
	return RecommendDecision{
		Kind:         DecisionSearch,
		Keyword:      keyword,
		Lat:          lat,
		Lng:          lng,
		RadiusMeters: radiusMeters,
		Source:       source,
	}
}
