package location

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/internal/types"
)

// Geocoder is the external geocoding capability: resolve text to candidate
// coordinates. Idempotent; may return an empty slice.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]GeocodeResult, error)
}

// GeocodeResult is one candidate returned by the geocoding capability.
type GeocodeResult struct {
	Lat         float64
	Lng         float64
	DisplayName string
	Types       []string // e.g. locality, administrative_area, point_of_interest
}

// ResolveContext is what the resolver knows about the requester beyond the
// raw location text.
type ResolveContext struct {
	LocaleRegion    string // ISO region from the request locale tag, e.g. "MM"
	HasDeviceCoords bool
	RegionBias      string // configured bias suffix, e.g. "Myanmar"
}

const geocodeCacheTTL = 10 * time.Minute

var _ Resolver = (*ResolverImpl)(nil)

type Resolver interface {
	Resolve(ctx context.Context, locationText string, rctx ResolveContext) (*types.ResolvedLocation, error)
}

// ResolverImpl resolves location phrases through the geocoding capability,
// with a short TTL cache so a follow-up burst does not repeat paid calls.
type ResolverImpl struct {
	logger *slog.Logger
	geo    Geocoder
	cache  *cache.Cache
}

func NewResolver(geo Geocoder, logger *slog.Logger) *ResolverImpl {
	return &ResolverImpl{
		logger: logger,
		geo:    geo,
		cache:  cache.New(geocodeCacheTTL, 5*time.Minute),
	}
}

// Countries and major cities that make a geocode query unambiguous on its
// own. A query naming one of these never gets a bias suffix appended.
var unambiguousPlaceTokens = []string{
	"myanmar", "burma", "thailand", "singapore", "vietnam", "malaysia",
	"japan", "korea", "china", "india", "usa", "united states", "uk",
	"united kingdom", "france", "germany", "italy", "spain", "australia",
	"yangon", "mandalay", "naypyidaw", "bangkok", "tokyo", "london",
	"paris", "new york", "san francisco", "sydney", "berlin", "seoul",
	"hong kong", "taipei", "hanoi", "kuala lumpur", "jakarta",
}

// Resolve geocodes locationText, preferring administrative/locality typed
// results and reporting a confidence accordingly. Returns nil (no error)
// when the capability finds nothing.
func (r *ResolverImpl) Resolve(ctx context.Context, locationText string, rctx ResolveContext) (*types.ResolvedLocation, error) {
	ctx, span := otel.Tracer("LocationResolver").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("location.text", locationText),
	))
	defer span.End()

	query := r.buildQuery(locationText, rctx)
	cacheKey := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if cached, found := r.cache.Get(cacheKey); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		resolved := cached.(types.ResolvedLocation)
		return &resolved, nil
	}

	results, err := r.geo.Geocode(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Geocode call failed")
		r.logger.ErrorContext(ctx, "Geocode call failed", slog.String("query", query), slog.Any("error", err))
		return nil, fmt.Errorf("geocode %q: %w", locationText, err)
	}
	if len(results) == 0 {
		span.SetAttributes(attribute.Bool("geocode.empty", true))
		return nil, nil
	}

	best, confidence := pickBest(results)
	resolved := types.ResolvedLocation{
		Lat:         best.Lat,
		Lng:         best.Lng,
		DisplayName: best.DisplayName,
		Confidence:  confidence,
	}
	r.cache.Set(cacheKey, resolved, cache.DefaultExpiration)

	span.SetAttributes(
		attribute.Float64("location.lat", resolved.Lat),
		attribute.Float64("location.lng", resolved.Lng),
		attribute.String("location.confidence", confidence),
	)
	return &resolved, nil
}

// buildQuery appends the regional bias suffix only when the raw text does
// not already name a country or major city AND the request context actually
// suggests a region. Biasing an already-unambiguous query skews results.
func (r *ResolverImpl) buildQuery(locationText string, rctx ResolveContext) string {
	lower := strings.ToLower(locationText)
	for _, token := range unambiguousPlaceTokens {
		if strings.Contains(lower, token) {
			return locationText
		}
	}
	if rctx.RegionBias == "" {
		return locationText
	}
	if rctx.LocaleRegion == "" && !rctx.HasDeviceCoords {
		return locationText
	}
	return locationText + ", " + rctx.RegionBias
}

func pickBest(results []GeocodeResult) (GeocodeResult, string) {
	for _, res := range results {
		for _, t := range res.Types {
			lt := strings.ToLower(t)
			if strings.Contains(lt, "locality") || strings.Contains(lt, "administrative") ||
				strings.Contains(lt, "political") || strings.Contains(lt, "country") {
				return res, "high"
			}
		}
	}
	// Nothing locality-typed: take the backend's first pick. A lone generic
	// result is still a reasonable medium-confidence answer; an ambiguous
	// pile of points of interest is not.
	if len(results) == 1 {
		return results[0], "medium"
	}
	return results[0], "low"
}
