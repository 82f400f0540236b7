package types

// ToolCatalogEntry describes one remotely invocable capability as reported
// by the backend's tool listing: a name plus the ordered set of parameter
// names it declares. Nothing beyond that is contractually guaranteed; roles
// and argument names are discovered by heuristics at runtime.
type ToolCatalogEntry struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
}

// HasParameter reports whether the capability declares the exact parameter.
func (t *ToolCatalogEntry) HasParameter(name string) bool {
	for _, p := range t.Parameters {
		if p == name {
			return true
		}
	}
	return false
}

// CatalogRoles maps discovered capabilities onto the roles the orchestrator
// needs. A nil field means the backend exposes nothing usable for that role.
type CatalogRoles struct {
	NearbySearch *ToolCatalogEntry
	TextSearch   *ToolCatalogEntry
	Geocode      *ToolCatalogEntry
	PlaceDetails *ToolCatalogEntry
}

// SearchAttempt records one rung of the retry ladder. The attempt log is
// part of the observable contract: it is the only way to tell "truly no
// places nearby" apart from "backend degraded".
type SearchAttempt struct {
	RadiusMeters int    `json:"radius_meters"`
	Capability   string `json:"capability"`
	ResultCount  int    `json:"result_count"`
	Status       string `json:"status"`
}
