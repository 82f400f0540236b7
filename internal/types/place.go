package types

import (
	"fmt"
	"time"
)

// PlaceCandidate is a normalized place record produced by the search
// orchestrator from whatever payload shape the backend returned. It is
// ephemeral: built per search response, never persisted.
type PlaceCandidate struct {
	PlaceID        string   `json:"place_id"`
	Name           string   `json:"name"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
	Rating         float64  `json:"rating,omitempty"`
	ReviewCount    int      `json:"review_count,omitempty"`
	PriceLevel     int      `json:"price_level,omitempty"`
	OpenNow        *bool    `json:"open_now,omitempty"`
	Address        string   `json:"address,omitempty"`
	MapsURL        string   `json:"maps_url,omitempty"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// SyntheticPlaceID builds a stable fallback identifier for payloads that
// omit a place id. Name plus coordinates is unique enough for in-turn
// de-duplication, which is the only thing the id is used for.
func SyntheticPlaceID(name string, lat, lng *float64) string {
	if lat != nil && lng != nil {
		return fmt.Sprintf("synth:%s:%.5f:%.5f", name, *lat, *lng)
	}
	return "synth:" + name
}

// HasCoords reports whether the candidate carries coordinates.
func (p *PlaceCandidate) HasCoords() bool {
	return p.Lat != nil && p.Lng != nil
}

// RankedResult pairs a candidate with its deterministic score and a
// human-readable justification built from the same inputs as the score.
type RankedResult struct {
	Candidate   PlaceCandidate `json:"candidate"`
	Score       float64        `json:"score"`
	Explanation string         `json:"explanation"`
}

// CommunitySignal is the aggregate community feedback for one place,
// supplied by the feedback repository and folded into ranking as a boost.
type CommunitySignal struct {
	AvgRating float64
	Count     int
}

// FeedbackInput is a community rating submission for a place.
type FeedbackInput struct {
	PlaceID   string    `json:"place_id"`
	PlaceName string    `json:"place_name,omitempty"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"-"`
}
