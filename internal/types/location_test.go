package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoLocation(t *testing.T) {
	t.Run("Coords", func(t *testing.T) {
		loc := CoordsLocation(16.8, 96.15)
		assert.Equal(t, GeoLocationCoords, loc.Kind())

		lat, lng, ok := loc.Coords()
		assert.True(t, ok)
		assert.Equal(t, 16.8, lat)
		assert.Equal(t, 96.15, lng)

		_, hasText := loc.Text()
		assert.False(t, hasText)
	})

	t.Run("Text", func(t *testing.T) {
		loc := TextLocation("Yangon")
		assert.Equal(t, GeoLocationText, loc.Kind())

		text, ok := loc.Text()
		assert.True(t, ok)
		assert.Equal(t, "Yangon", text)

		_, _, hasCoords := loc.Coords()
		assert.False(t, hasCoords)
	})

	t.Run("None", func(t *testing.T) {
		loc := NoLocation()
		assert.Equal(t, GeoLocationNone, loc.Kind())

		_, _, hasCoords := loc.Coords()
		assert.False(t, hasCoords)
		_, hasText := loc.Text()
		assert.False(t, hasText)
	})
}

func TestHaversineMeters(t *testing.T) {
	t.Run("ZeroForSamePoint", func(t *testing.T) {
		assert.Equal(t, 0.0, HaversineMeters(16.8, 96.15, 16.8, 96.15))
	})

	t.Run("KnownDistance", func(t *testing.T) {
		// Yangon to Mandalay is roughly 577 km as the crow flies.
		d := HaversineMeters(16.8409, 96.1735, 21.9588, 96.0891)
		assert.InDelta(t, 569000, d, 10000)
	})

	t.Run("Symmetric", func(t *testing.T) {
		a := HaversineMeters(16.8, 96.1, 21.9, 96.0)
		b := HaversineMeters(21.9, 96.0, 16.8, 96.1)
		assert.InDelta(t, a, b, 1e-6)
	})
}
