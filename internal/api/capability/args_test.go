package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placepal/placepal/internal/types"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }
func s(v string) *string     { return &v }

func TestBuildArgs(t *testing.T) {
	lat, lng := 16.8, 96.15

	t.Run("IndividualLatLngParams", func(t *testing.T) {
		entry := &types.ToolCatalogEntry{
			Name:       "search_nearby",
			Parameters: []string{"latitude", "longitude", "radius", "keyword"},
		}
		args := BuildArgs(entry, ArgConcepts{
			Lat: f64(lat), Lng: f64(lng), RadiusMeters: i(1500), Keyword: s("sushi"),
		})

		assert.Equal(t, lat, args["latitude"])
		assert.Equal(t, lng, args["longitude"])
		assert.Equal(t, 1500, args["radius"])
		assert.Equal(t, "sushi", args["keyword"])
	})

	t.Run("CompositeLocationWhenNoIndividualParams", func(t *testing.T) {
		entry := &types.ToolCatalogEntry{
			Name:       "nearby",
			Parameters: []string{"location", "radius_m", "query"},
		}
		args := BuildArgs(entry, ArgConcepts{
			Lat: f64(lat), Lng: f64(lng), RadiusMeters: i(3000), Keyword: s("ramen"),
		})

		loc, ok := args["location"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, lat, loc["lat"])
		assert.Equal(t, lng, loc["lng"])
		// Never both the composite object and loose coordinates.
		assert.NotContains(t, args, "lat")
		assert.NotContains(t, args, "lng")
		assert.Equal(t, 3000, args["radius_m"])
	})

	t.Run("ExactNameBeatsSubstring", func(t *testing.T) {
		entry := &types.ToolCatalogEntry{
			Name:       "search",
			Parameters: []string{"latitude_offset", "lat", "lng"},
		}
		args := BuildArgs(entry, ArgConcepts{Lat: f64(lat), Lng: f64(lng)})

		assert.Equal(t, lat, args["lat"])
		assert.NotContains(t, args, "latitude_offset")
	})

	t.Run("UnmappableConceptsAreOmitted", func(t *testing.T) {
		entry := &types.ToolCatalogEntry{
			Name:       "minimal_search",
			Parameters: []string{"q"},
		}
		args := BuildArgs(entry, ArgConcepts{
			Lat: f64(lat), Lng: f64(lng), RadiusMeters: i(1500),
			Keyword: s("pho"), Limit: i(10),
		})

		assert.Equal(t, map[string]any{"q": "pho"}, args)
	})

	t.Run("EmptyPageTokenIsNotSent", func(t *testing.T) {
		entry := &types.ToolCatalogEntry{
			Name:       "nearby",
			Parameters: []string{"lat", "lng", "page_token"},
		}
		args := BuildArgs(entry, ArgConcepts{Lat: f64(lat), Lng: f64(lng), PageToken: s("")})
		assert.NotContains(t, args, "page_token")

		args = BuildArgs(entry, ArgConcepts{Lat: f64(lat), Lng: f64(lng), PageToken: s("tok-2")})
		assert.Equal(t, "tok-2", args["page_token"])
	})

	t.Run("Deterministic", func(t *testing.T) {
		entry := &types.ToolCatalogEntry{
			Name:       "nearby",
			Parameters: []string{"lat", "lng", "radius", "keyword", "limit"},
		}
		concepts := ArgConcepts{
			Lat: f64(lat), Lng: f64(lng), RadiusMeters: i(2000),
			Keyword: s("curry"), Limit: i(5),
		}
		first := BuildArgs(entry, concepts)
		for range 10 {
			assert.Equal(t, first, BuildArgs(entry, concepts))
		}
	})
}
