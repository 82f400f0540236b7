package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/placepal/placepal/app/observability/metrics"
	"github.com/placepal/placepal/internal/api/location"
)

var _ location.Geocoder = (*Geocoder)(nil)

// Geocoder implements the geocoding capability on top of the discovered
// tool catalog: find the geocode-role tool, adapt the query onto its
// declared parameters, and normalize the candidates it returns.
type Geocoder struct {
	logger     *slog.Logger
	catalog    *CatalogResolver
	invoker    Invoker
	endpoint   string
	credential string
}

func NewGeocoder(catalog *CatalogResolver, invoker Invoker, endpoint, credential string, logger *slog.Logger) *Geocoder {
	return &Geocoder{
		logger:     logger,
		catalog:    catalog,
		invoker:    invoker,
		endpoint:   endpoint,
		credential: credential,
	}
}

func (g *Geocoder) Geocode(ctx context.Context, query string) ([]location.GeocodeResult, error) {
	entries, err := g.catalog.List(ctx, g.endpoint, g.credential)
	if err != nil {
		return nil, err
	}
	roles := Classify(entries)
	if roles.Geocode == nil {
		return nil, fmt.Errorf("backend exposes no geocode capability")
	}

	args := BuildArgs(roles.Geocode, ArgConcepts{Address: &query})
	metrics.Get().GeocodeCallsTotal.Add(ctx, 1)
	raw, err := g.invoker.CallTool(ctx, g.endpoint, g.credential, roles.Geocode.Name, args)
	if err != nil {
		return nil, fmt.Errorf("geocode call: %w", err)
	}
	return parseGeocodePayload(raw), nil
}

// parseGeocodePayload tolerates the same array-nesting variety as search
// payloads: results under results/candidates/... or a bare array.
func parseGeocodePayload(raw json.RawMessage) []location.GeocodeResult {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil
	}

	var items []any
	switch v := top.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range []string{"results", "candidates", "items", "data"} {
			if arr, ok := v[key].([]any); ok {
				items = arr
				break
			}
		}
	}

	out := make([]location.GeocodeResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		res := location.GeocodeResult{}

		if geom, ok := obj["geometry"].(map[string]any); ok {
			if loc, ok := geom["location"].(map[string]any); ok {
				res.Lat, _ = loc["lat"].(float64)
				res.Lng, _ = loc["lng"].(float64)
			}
		}
		if res.Lat == 0 && res.Lng == 0 {
			if lat, ok := obj["lat"].(float64); ok {
				res.Lat = lat
			}
			if lng, ok := obj["lng"].(float64); ok {
				res.Lng = lng
			} else if lng, ok := obj["lon"].(float64); ok {
				res.Lng = lng
			}
		}
		if res.Lat == 0 && res.Lng == 0 {
			continue
		}

		if name, ok := obj["formatted_address"].(string); ok {
			res.DisplayName = name
		} else if name, ok := obj["display_name"].(string); ok {
			res.DisplayName = name
		} else if name, ok := obj["name"].(string); ok {
			res.DisplayName = name
		}

		if rawTypes, ok := obj["types"].([]any); ok {
			for _, t := range rawTypes {
				if s, ok := t.(string); ok {
					res.Types = append(res.Types, s)
				}
			}
		} else if t, ok := obj["type"].(string); ok {
			res.Types = []string{t}
		}

		out = append(out, res)
	}
	return out
}
