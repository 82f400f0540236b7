package search

import (
	"encoding/json"
	"strings"

	"github.com/placepal/placepal/internal/types"
)

// Keys under which backends have been observed to nest their result arrays.
var resultArrayKeys = []string{"results", "places", "candidates", "items", "data"}

var pageTokenKeys = []string{"next_page_token", "nextPageToken", "next_page", "page_token", "cursor"}

// extractCandidates walks a backend-defined payload into canonical place
// candidates plus the continuation token, if any. Payload items with neither
// a name nor identifiable coordinates are dropped.
func extractCandidates(raw json.RawMessage) ([]types.PlaceCandidate, *string) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, nil
	}

	items, token := findResultArray(top, 0)
	candidates := make([]types.PlaceCandidate, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if cand, ok := normalizeItem(obj); ok {
			candidates = append(candidates, cand)
		}
	}
	return candidates, token
}

// findResultArray locates the result array: a top-level array, an array
// under one of the known keys, or the same one level deeper under "result".
func findResultArray(node any, depth int) ([]any, *string) {
	switch v := node.(type) {
	case []any:
		return v, nil
	case map[string]any:
		token := findPageToken(v)
		for _, key := range resultArrayKeys {
			if arr, ok := v[key].([]any); ok {
				return arr, token
			}
		}
		if depth == 0 {
			if nested, ok := v["result"]; ok {
				arr, nestedToken := findResultArray(nested, depth+1)
				if nestedToken == nil {
					nestedToken = token
				}
				return arr, nestedToken
			}
		}
		return nil, token
	}
	return nil, nil
}

func findPageToken(obj map[string]any) *string {
	for _, key := range pageTokenKeys {
		if s, ok := obj[key].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// normalizeItem maps one backend item onto a PlaceCandidate via field
// sniffing over the names the major place backends use.
func normalizeItem(obj map[string]any) (types.PlaceCandidate, bool) {
	var cand types.PlaceCandidate

	cand.Name = firstString(obj, "name", "title", "place_name", "displayName")
	if nested, ok := obj["displayName"].(map[string]any); ok {
		// New Places API nests the display name under {text, languageCode}.
		if txt := firstString(nested, "text"); txt != "" {
			cand.Name = txt
		}
	}

	cand.Lat, cand.Lng = sniffCoords(obj)
	if cand.Name == "" && (cand.Lat == nil || cand.Lng == nil) {
		return types.PlaceCandidate{}, false
	}

	cand.PlaceID = firstString(obj, "place_id", "placeId", "id", "fsq_id", "reference")
	if cand.PlaceID == "" {
		cand.PlaceID = types.SyntheticPlaceID(cand.Name, cand.Lat, cand.Lng)
	}

	cand.Rating = firstNumber(obj, "rating", "avg_rating", "score")
	cand.ReviewCount = int(firstNumber(obj, "user_ratings_total", "userRatingCount", "review_count", "reviews"))
	cand.PriceLevel = int(firstNumber(obj, "price_level", "priceLevel"))
	cand.Address = firstString(obj, "vicinity", "formatted_address", "formattedAddress", "address")
	cand.MapsURL = firstString(obj, "maps_url", "url", "googleMapsUri", "link")
	cand.OpenNow = sniffOpenNow(obj)
	return cand, true
}

func sniffCoords(obj map[string]any) (*float64, *float64) {
	// Google classic: geometry.location.{lat,lng}
	if geom, ok := obj["geometry"].(map[string]any); ok {
		if loc, ok := geom["location"].(map[string]any); ok {
			if lat, lng, ok := latLngFrom(loc); ok {
				return lat, lng
			}
		}
	}
	// Composite location object, either {lat,lng} or {latitude,longitude}.
	if loc, ok := obj["location"].(map[string]any); ok {
		if lat, lng, ok := latLngFrom(loc); ok {
			return lat, lng
		}
	}
	// Flat fields on the item itself.
	if lat, lng, ok := latLngFrom(obj); ok {
		return lat, lng
	}
	return nil, nil
}

func latLngFrom(obj map[string]any) (*float64, *float64, bool) {
	latKeys := []string{"lat", "latitude"}
	lngKeys := []string{"lng", "lon", "longitude"}
	var lat, lng *float64
	for _, k := range latKeys {
		if v, ok := obj[k].(float64); ok {
			lat = &v
			break
		}
	}
	for _, k := range lngKeys {
		if v, ok := obj[k].(float64); ok {
			lng = &v
			break
		}
	}
	return lat, lng, lat != nil && lng != nil
}

func sniffOpenNow(obj map[string]any) *bool {
	if oh, ok := obj["opening_hours"].(map[string]any); ok {
		if v, ok := oh["open_now"].(bool); ok {
			return &v
		}
	}
	if oh, ok := obj["currentOpeningHours"].(map[string]any); ok {
		if v, ok := oh["openNow"].(bool); ok {
			return &v
		}
	}
	for _, key := range []string{"open_now", "openNow", "is_open"} {
		if v, ok := obj[key].(bool); ok {
			return &v
		}
	}
	return nil
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstNumber(obj map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			return v
		case string:
			continue
		}
	}
	return 0
}
