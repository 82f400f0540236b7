package capability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/placepal/placepal/internal/types"
)

// MockInvoker is a mock implementation of the Invoker interface
type MockInvoker struct {
	mock.Mock
}

func (m *MockInvoker) ListTools(ctx context.Context, endpoint, credential string) ([]types.ToolCatalogEntry, error) {
	args := m.Called(ctx, endpoint, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ToolCatalogEntry), args.Error(1)
}

func (m *MockInvoker) CallTool(ctx context.Context, endpoint, credential, name string, toolArgs map[string]any) (json.RawMessage, error) {
	args := m.Called(ctx, endpoint, credential, name, toolArgs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func TestCatalogResolverList(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	entries := []types.ToolCatalogEntry{
		{Name: "search_nearby", Parameters: []string{"lat", "lng", "radius"}},
		{Name: "geocode", Parameters: []string{"address"}},
	}

	t.Run("CachesListing", func(t *testing.T) {
		invoker := new(MockInvoker)
		invoker.On("ListTools", mock.Anything, "http://places", "secret").
			Return(entries, nil).Once()

		resolver := NewCatalogResolver(invoker, logger)

		got, err := resolver.List(ctx, "http://places", "secret")
		require.NoError(t, err)
		assert.Equal(t, entries, got)

		// Second call is served from cache: the mock allows one call only.
		got, err = resolver.List(ctx, "http://places", "secret")
		require.NoError(t, err)
		assert.Equal(t, entries, got)
		invoker.AssertExpectations(t)
	})

	t.Run("InvalidateForcesRefetch", func(t *testing.T) {
		invoker := new(MockInvoker)
		invoker.On("ListTools", mock.Anything, "http://places", "secret").
			Return(entries, nil).Twice()

		resolver := NewCatalogResolver(invoker, logger)

		_, err := resolver.List(ctx, "http://places", "secret")
		require.NoError(t, err)

		resolver.Invalidate("http://places", "secret")

		_, err = resolver.List(ctx, "http://places", "secret")
		require.NoError(t, err)
		invoker.AssertExpectations(t)
	})

	t.Run("DistinctCredentialsGetDistinctEntries", func(t *testing.T) {
		invoker := new(MockInvoker)
		invoker.On("ListTools", mock.Anything, "http://places", "key-a").
			Return(entries, nil).Once()
		invoker.On("ListTools", mock.Anything, "http://places", "key-b").
			Return(entries[:1], nil).Once()

		resolver := NewCatalogResolver(invoker, logger)

		a, err := resolver.List(ctx, "http://places", "key-a")
		require.NoError(t, err)
		b, err := resolver.List(ctx, "http://places", "key-b")
		require.NoError(t, err)

		assert.Len(t, a, 2)
		assert.Len(t, b, 1)
		invoker.AssertExpectations(t)
	})

	t.Run("ListingFailurePropagates", func(t *testing.T) {
		invoker := new(MockInvoker)
		invoker.On("ListTools", mock.Anything, "http://places", "secret").
			Return(nil, errors.New("upstream down")).Once()

		resolver := NewCatalogResolver(invoker, logger)

		_, err := resolver.List(ctx, "http://places", "secret")
		assert.Error(t, err)
		invoker.AssertExpectations(t)
	})

	t.Run("CacheKeyDoesNotContainCredential", func(t *testing.T) {
		key := cacheKey("http://places", "super-secret-key")
		assert.NotContains(t, key, "super-secret-key")
	})
}

func TestClassify(t *testing.T) {
	t.Run("ByName", func(t *testing.T) {
		roles := Classify([]types.ToolCatalogEntry{
			{Name: "places_nearby_search", Parameters: []string{"lat", "lng", "radius"}},
			{Name: "places_text_search", Parameters: []string{"query"}},
			{Name: "geocode_address", Parameters: []string{"address"}},
			{Name: "place_details", Parameters: []string{"place_id"}},
		})

		require.NotNil(t, roles.NearbySearch)
		assert.Equal(t, "places_nearby_search", roles.NearbySearch.Name)
		require.NotNil(t, roles.TextSearch)
		assert.Equal(t, "places_text_search", roles.TextSearch.Name)
		require.NotNil(t, roles.Geocode)
		assert.Equal(t, "geocode_address", roles.Geocode.Name)
		require.NotNil(t, roles.PlaceDetails)
		assert.Equal(t, "place_details", roles.PlaceDetails.Name)
	})

	t.Run("GenericNameQualifiesByParameters", func(t *testing.T) {
		roles := Classify([]types.ToolCatalogEntry{
			{Name: "find", Parameters: []string{"latitude", "longitude", "radius_m", "keyword"}},
		})

		require.NotNil(t, roles.NearbySearch)
		assert.Equal(t, "find", roles.NearbySearch.Name)
	})

	t.Run("FirstQualifyingEntryWinsPerRole", func(t *testing.T) {
		roles := Classify([]types.ToolCatalogEntry{
			{Name: "nearby_v1", Parameters: []string{"lat", "lng", "radius"}},
			{Name: "nearby_v2", Parameters: []string{"lat", "lng", "radius"}},
		})

		require.NotNil(t, roles.NearbySearch)
		assert.Equal(t, "nearby_v1", roles.NearbySearch.Name)
	})

	t.Run("DetailsToolBeforeGeocodeToolKeepsBothRoles", func(t *testing.T) {
		roles := Classify([]types.ToolCatalogEntry{
			{Name: "get_place", Parameters: []string{"place_id"}},
			{Name: "geocode", Parameters: []string{"address"}},
		})

		require.NotNil(t, roles.PlaceDetails)
		assert.Equal(t, "get_place", roles.PlaceDetails.Name)
		require.NotNil(t, roles.Geocode)
		assert.Equal(t, "geocode", roles.Geocode.Name)
	})

	t.Run("IdentifierParamsDoNotReadAsAddressText", func(t *testing.T) {
		roles := Classify([]types.ToolCatalogEntry{
			{Name: "lookup", Parameters: []string{"place_id"}},
		})

		assert.Nil(t, roles.Geocode)
	})

	t.Run("MissingRolesStayNil", func(t *testing.T) {
		roles := Classify([]types.ToolCatalogEntry{
			{Name: "weather_forecast", Parameters: []string{"city"}},
		})

		assert.Nil(t, roles.NearbySearch)
		assert.Nil(t, roles.TextSearch)
	})
}
