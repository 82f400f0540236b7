package capability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/placepal/placepal/internal/types"
)

const catalogCacheTTL = 5 * time.Minute

// CatalogResolver fetches and caches the backend's tool listing. The remote
// capability set is configuration-driven, not contractually fixed, so the
// listing is discovered at runtime and re-fetched after the TTL or after an
// unknown-capability rejection.
type CatalogResolver struct {
	logger  *slog.Logger
	invoker Invoker
	cache   *cache.Cache
	group   singleflight.Group
}

func NewCatalogResolver(invoker Invoker, logger *slog.Logger) *CatalogResolver {
	return &CatalogResolver{
		logger:  logger,
		invoker: invoker,
		cache:   cache.New(catalogCacheTTL, time.Minute),
	}
}

// List returns the tool catalog for (endpoint, credential), served from the
// TTL cache when fresh. Concurrent misses for the same key collapse into a
// single upstream fetch.
func (r *CatalogResolver) List(ctx context.Context, endpoint, credential string) ([]types.ToolCatalogEntry, error) {
	ctx, span := otel.Tracer("CapabilityCatalog").Start(ctx, "List", trace.WithAttributes(
		attribute.String("catalog.endpoint", endpoint),
	))
	defer span.End()

	key := cacheKey(endpoint, credential)
	if cached, found := r.cache.Get(key); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]types.ToolCatalogEntry), nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		entries, err := r.invoker.ListTools(ctx, endpoint, credential)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, entries, cache.DefaultExpiration)
		return entries, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Tool listing failed")
		r.logger.ErrorContext(ctx, "Failed to list capabilities", slog.String("endpoint", endpoint), slog.Any("error", err))
		return nil, fmt.Errorf("list capabilities: %w", err)
	}

	entries := v.([]types.ToolCatalogEntry)
	span.SetAttributes(attribute.Int("catalog.size", len(entries)))
	return entries, nil
}

// Invalidate drops the cached listing, typically after the backend rejected
// a call with an unknown-capability error.
func (r *CatalogResolver) Invalidate(endpoint, credential string) {
	r.cache.Delete(cacheKey(endpoint, credential))
}

// cacheKey hashes the credential so raw secrets never sit in cache keys.
func cacheKey(endpoint, credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return endpoint + "|" + hex.EncodeToString(sum[:8])
}

// Role-matching heuristics. A capability qualifies for a role when either
// its name or its declared parameter names look the part; the backend's
// names are not guaranteed to follow any convention.
var (
	nearbyNameHints  = []string{"nearby", "near_by", "nearbysearch", "search_nearby", "places_nearby"}
	textNameHints    = []string{"text_search", "textsearch", "search_text", "find_place", "query"}
	geocodeNameHints = []string{"geocode", "geo_code", "address_to", "forward_geocod"}
	detailsNameHints = []string{"details", "place_detail", "placedetails", "get_place"}

	latParamHints    = []string{"lat"}
	lngParamHints    = []string{"lng", "lon"}
	radiusParamHints = []string{"radius", "distance"}
	queryParamHints  = []string{"query", "keyword", "text", "q"}
	addrParamHints   = []string{"address", "place", "location_text"}
)

// Classify buckets catalog entries into the roles the search pipeline needs.
// First qualifying entry wins per role, preserving the backend's order.
func Classify(entries []types.ToolCatalogEntry) types.CatalogRoles {
	var roles types.CatalogRoles
	for i := range entries {
		entry := &entries[i]
		name := strings.ToLower(entry.Name)

		switch {
		case roles.NearbySearch == nil && isNearbyCandidate(name, entry):
			roles.NearbySearch = entry
		case roles.PlaceDetails == nil && matchesAny(name, detailsNameHints):
			roles.PlaceDetails = entry
		case roles.Geocode == nil && isGeocodeCandidate(name, entry):
			roles.Geocode = entry
		case roles.TextSearch == nil && isTextSearchCandidate(name, entry):
			roles.TextSearch = entry
		}
	}
	return roles
}

// isNearbyCandidate: named like a nearby search, or declares coordinates
// plus a radius even under a generic name.
func isNearbyCandidate(name string, entry *types.ToolCatalogEntry) bool {
	if matchesAny(name, nearbyNameHints) {
		return true
	}
	return hasParamLike(entry, latParamHints) &&
		hasParamLike(entry, lngParamHints) &&
		hasParamLike(entry, radiusParamHints)
}

func isTextSearchCandidate(name string, entry *types.ToolCatalogEntry) bool {
	if matchesAny(name, textNameHints) {
		return true
	}
	// A "search"-named tool with a free-text parameter and no coordinate
	// requirement reads as text search.
	return strings.Contains(name, "search") && hasParamLike(entry, queryParamHints)
}

func isGeocodeCandidate(name string, entry *types.ToolCatalogEntry) bool {
	if matchesAny(name, geocodeNameHints) {
		return true
	}
	if hasParamLike(entry, latParamHints) {
		return false
	}
	for _, p := range entry.Parameters {
		lp := strings.ToLower(p)
		// Identifier parameters take an opaque id, not address text, even
		// when their name contains an address hint ("place_id").
		if lp == "id" || strings.HasSuffix(lp, "_id") {
			continue
		}
		if matchesAny(lp, addrParamHints) {
			return true
		}
	}
	return false
}

func matchesAny(name string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}

func hasParamLike(entry *types.ToolCatalogEntry, hints []string) bool {
	for _, p := range entry.Parameters {
		lp := strings.ToLower(p)
		for _, h := range hints {
			if strings.Contains(lp, h) {
				return true
			}
		}
	}
	return false
}
