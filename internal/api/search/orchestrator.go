package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/placepal/placepal/app/observability/metrics"
	"github.com/placepal/placepal/internal/api/capability"
	"github.com/placepal/placepal/internal/types"
)

// Config bounds the retry ladder. Ladder rungs are the widened radii tried
// after the resolved radius comes up empty.
type Config struct {
	Endpoint            string
	Credential          string
	DefaultRadiusMeters int
	MinRadiusMeters     int
	MaxRadiusMeters     int
	LadderMeters        []int
	MaxResults          int
}

// DefaultConfig mirrors the production ladder: base, then 3 km, then 8 km.
func DefaultConfig(endpoint, credential string) Config {
	return Config{
		Endpoint:            endpoint,
		Credential:          credential,
		DefaultRadiusMeters: 1500,
		MinRadiusMeters:     100,
		MaxRadiusMeters:     20000,
		LadderMeters:        []int{3000, 8000},
		MaxResults:          10,
	}
}

// Input is one search request with fully resolved coordinates.
type Input struct {
	Keyword      string
	Lat          float64
	Lng          float64
	RadiusMeters int
	PageToken    *string
}

// Output carries the deduplicated candidates, the continuation token and
// the attempt log. The attempt log is part of the observable contract.
type Output struct {
	Candidates    []types.PlaceCandidate
	NextPageToken *string
	Attempts      []types.SearchAttempt
}

var _ Orchestrator = (*OrchestratorImpl)(nil)

type Orchestrator interface {
	Search(ctx context.Context, input Input) (*Output, error)
}

// OrchestratorImpl runs the bounded retry ladder: nearby search per rung,
// widening the radius on empty results, then one text-search fallback.
// Per-attempt failures count as zero results for that attempt; only total
// exhaustion surfaces an empty output.
type OrchestratorImpl struct {
	logger  *slog.Logger
	catalog *capability.CatalogResolver
	invoker capability.Invoker
	cfg     Config
}

func NewOrchestrator(catalog *capability.CatalogResolver, invoker capability.Invoker, cfg Config, logger *slog.Logger) *OrchestratorImpl {
	return &OrchestratorImpl{logger: logger, catalog: catalog, invoker: invoker, cfg: cfg}
}

func (o *OrchestratorImpl) Search(ctx context.Context, input Input) (*Output, error) {
	ctx, span := otel.Tracer("SearchOrchestrator").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("search.keyword", input.Keyword),
		attribute.Int("search.radius_meters", input.RadiusMeters),
	))
	defer span.End()

	l := o.logger.With(slog.String("method", "Search"), slog.String("keyword", input.Keyword))

	entries, err := o.catalog.List(ctx, o.cfg.Endpoint, o.cfg.Credential)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Capability listing failed")
		return nil, fmt.Errorf("resolve capabilities: %w", err)
	}
	roles := capability.Classify(entries)

	out := &Output{}
	ladder := o.buildLadder(input.RadiusMeters)
	span.SetAttributes(attribute.IntSlice("search.ladder", ladder))

	if roles.NearbySearch != nil {
		for i, radius := range ladder {
			// The continuation token belongs to the original radius; it is
			// only meaningful on the first rung.
			var token *string
			if i == 0 {
				token = input.PageToken
			}
			cands, next, status := o.attemptNearby(ctx, roles.NearbySearch, input, radius, token)
			out.Attempts = append(out.Attempts, types.SearchAttempt{
				RadiusMeters: radius,
				Capability:   roles.NearbySearch.Name,
				ResultCount:  len(cands),
				Status:       status,
			})
			if len(cands) > 0 {
				out.Candidates = cands
				out.NextPageToken = next
				break
			}
		}
	} else {
		l.WarnContext(ctx, "Backend exposes no nearby-search capability")
	}

	if len(out.Candidates) == 0 && roles.TextSearch != nil {
		cands, next, status := o.attemptTextSearch(ctx, roles.TextSearch, input)
		out.Attempts = append(out.Attempts, types.SearchAttempt{
			RadiusMeters: o.clampRadius(input.RadiusMeters),
			Capability:   roles.TextSearch.Name,
			ResultCount:  len(cands),
			Status:       status,
		})
		out.Candidates = cands
		out.NextPageToken = next
	}

	out.Candidates = o.finalize(out.Candidates, input.Lat, input.Lng)

	span.SetAttributes(
		attribute.Int("search.attempts", len(out.Attempts)),
		attribute.Int("search.results", len(out.Candidates)),
	)
	metrics.Get().SearchAttemptsTotal.Add(ctx, int64(len(out.Attempts)))
	l.InfoContext(ctx, "Search ladder completed",
		slog.Int("attempts", len(out.Attempts)),
		slog.Int("results", len(out.Candidates)),
	)
	return out, nil
}

func (o *OrchestratorImpl) attemptNearby(ctx context.Context, entry *types.ToolCatalogEntry, input Input, radius int, token *string) ([]types.PlaceCandidate, *string, string) {
	keyword := input.Keyword
	limit := o.cfg.MaxResults
	concepts := capability.ArgConcepts{
		Lat:          &input.Lat,
		Lng:          &input.Lng,
		RadiusMeters: &radius,
		Keyword:      &keyword,
		PageToken:    token,
		Limit:        &limit,
	}
	raw, err := o.invokeWithRefresh(ctx, entry.Name, capability.BuildArgs(entry, concepts))
	if err != nil {
		// A failed attempt is zero results for this rung; the ladder
		// continues rather than aborting the turn.
		o.logger.WarnContext(ctx, "Nearby search attempt failed",
			slog.Int("radius_meters", radius), slog.Any("error", err))
		return nil, nil, "error: " + err.Error()
	}
	cands, next := extractCandidates(raw)
	if len(cands) == 0 {
		return nil, nil, "zero_results"
	}
	return cands, next, "ok"
}

func (o *OrchestratorImpl) attemptTextSearch(ctx context.Context, entry *types.ToolCatalogEntry, input Input) ([]types.PlaceCandidate, *string, string) {
	// Location-biased free text query as the last resort.
	query := fmt.Sprintf("%s near %.5f,%.5f", input.Keyword, input.Lat, input.Lng)
	limit := o.cfg.MaxResults
	radius := o.clampRadius(o.cfg.MaxRadiusMeters)
	concepts := capability.ArgConcepts{
		Keyword:      &query,
		Lat:          &input.Lat,
		Lng:          &input.Lng,
		RadiusMeters: &radius,
		Limit:        &limit,
	}
	raw, err := o.invokeWithRefresh(ctx, entry.Name, capability.BuildArgs(entry, concepts))
	if err != nil {
		o.logger.WarnContext(ctx, "Text search fallback failed", slog.Any("error", err))
		return nil, nil, "error: " + err.Error()
	}
	cands, next := extractCandidates(raw)
	if len(cands) == 0 {
		return nil, nil, "zero_results"
	}
	return cands, next, "ok"
}

// invokeWithRefresh retries exactly once after an unknown-capability
// rejection, with the catalog cache invalidated in between. Any other
// failure is returned as-is for the ladder to absorb.
func (o *OrchestratorImpl) invokeWithRefresh(ctx context.Context, name string, args map[string]any) ([]byte, error) {
	raw, err := o.invoker.CallTool(ctx, o.cfg.Endpoint, o.cfg.Credential, name, args)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, capability.ErrUnknownCapability) {
		return nil, err
	}
	o.logger.InfoContext(ctx, "Capability unknown, refreshing catalog and retrying once", slog.String("capability", name))
	o.catalog.Invalidate(o.cfg.Endpoint, o.cfg.Credential)
	if _, listErr := o.catalog.List(ctx, o.cfg.Endpoint, o.cfg.Credential); listErr != nil {
		return nil, fmt.Errorf("refresh catalog: %w", listErr)
	}
	return o.invoker.CallTool(ctx, o.cfg.Endpoint, o.cfg.Credential, name, args)
}

// buildLadder produces the deduplicated ascending radius sequence starting
// at the clamped resolved radius. Every rung is clamped to [min,max] before
// any call is issued.
func (o *OrchestratorImpl) buildLadder(radius int) []int {
	if radius <= 0 {
		radius = o.cfg.DefaultRadiusMeters
	}
	rungs := append([]int{o.clampRadius(radius)}, o.widenedRungs(radius)...)
	return rungs
}

func (o *OrchestratorImpl) widenedRungs(base int) []int {
	seen := map[int]struct{}{o.clampRadius(base): {}}
	var out []int
	for _, r := range o.cfg.LadderMeters {
		c := o.clampRadius(r)
		if c <= o.clampRadius(base) {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func (o *OrchestratorImpl) clampRadius(radius int) int {
	if radius < o.cfg.MinRadiusMeters {
		return o.cfg.MinRadiusMeters
	}
	if radius > o.cfg.MaxRadiusMeters {
		return o.cfg.MaxRadiusMeters
	}
	return radius
}

// finalize deduplicates by place id (first seen wins, preserving backend
// order), derives distances and caps the result count.
func (o *OrchestratorImpl) finalize(cands []types.PlaceCandidate, lat, lng float64) []types.PlaceCandidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]types.PlaceCandidate, 0, len(cands))
	for _, c := range cands {
		if _, dup := seen[c.PlaceID]; dup {
			continue
		}
		seen[c.PlaceID] = struct{}{}
		if c.HasCoords() {
			d := types.HaversineMeters(lat, lng, *c.Lat, *c.Lng)
			c.DistanceMeters = &d
		}
		out = append(out, c)
		if o.cfg.MaxResults > 0 && len(out) >= o.cfg.MaxResults {
			break
		}
	}
	return out
}
