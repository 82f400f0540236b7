package types

import "math"

// GeoLocationKind discriminates the GeoLocation union.
type GeoLocationKind string

const (
	GeoLocationCoords GeoLocationKind = "coords"
	GeoLocationText   GeoLocationKind = "text"
	GeoLocationNone   GeoLocationKind = "none"
)

// GeoLocation is a closed union over "we have coordinates", "we have a free
// text location phrase" and "we know nothing". It is threaded through the
// pipeline instead of a pair of optional floats so that "no location known"
// is a distinct state rather than a zero value.
type GeoLocation struct {
	kind GeoLocationKind
	lat  float64
	lng  float64
	text string
}

// CoordsLocation returns a GeoLocation holding resolved coordinates.
func CoordsLocation(lat, lng float64) GeoLocation {
	return GeoLocation{kind: GeoLocationCoords, lat: lat, lng: lng}
}

// TextLocation returns a GeoLocation holding an unresolved location phrase.
func TextLocation(text string) GeoLocation {
	return GeoLocation{kind: GeoLocationText, text: text}
}

// NoLocation returns the empty GeoLocation.
func NoLocation() GeoLocation {
	return GeoLocation{kind: GeoLocationNone}
}

func (g GeoLocation) Kind() GeoLocationKind { return g.kind }

// Coords returns the coordinates and whether they are present.
func (g GeoLocation) Coords() (lat, lng float64, ok bool) {
	if g.kind != GeoLocationCoords {
		return 0, 0, false
	}
	return g.lat, g.lng, true
}

// Text returns the location phrase and whether it is present.
func (g GeoLocation) Text() (string, bool) {
	if g.kind != GeoLocationText {
		return "", false
	}
	return g.text, true
}

// ResolvedLocation is the output of geocoding a location phrase.
type ResolvedLocation struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"display_name,omitempty"`
	Confidence  string  `json:"confidence"` // high, medium, low
}

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
