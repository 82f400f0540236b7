package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/placepal/placepal/internal/types"
)

// ErrUnknownCapability marks a call rejected because the backend no longer
// exposes the named tool. The catalog cache must be invalidated and the
// listing refreshed before one retry.
var ErrUnknownCapability = errors.New("unknown capability")

// Invoker is the tool-calling abstraction: list what the backend exposes and
// invoke a named tool with arguments. Payload shapes are backend-defined.
type Invoker interface {
	ListTools(ctx context.Context, endpoint, credential string) ([]types.ToolCatalogEntry, error)
	CallTool(ctx context.Context, endpoint, credential, name string, args map[string]any) (json.RawMessage, error)
}

var _ Invoker = (*HTTPClient)(nil)

// HTTPClient talks to the remote tool-catalog service over plain JSON HTTP.
type HTTPClient struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		// Per-call deadlines come from ctx; the client timeout is only a
		// backstop against callers that forget one.
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// ListTools fetches the capability listing. The service reports declared
// parameters either as an array of names or as a JSON-schema style
// properties object; both shapes normalize to an ordered name list.
func (c *HTTPClient) ListTools(ctx context.Context, endpoint, credential string) ([]types.ToolCatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+"/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("build list tools request: %w", err)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read list tools response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list tools returned status %d", resp.StatusCode)
	}

	var listing struct {
		Tools []struct {
			Name       string          `json:"name"`
			Parameters json.RawMessage `json:"parameters"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode list tools response: %w", err)
	}

	entries := make([]types.ToolCatalogEntry, 0, len(listing.Tools))
	for _, t := range listing.Tools {
		if t.Name == "" {
			continue
		}
		entries = append(entries, types.ToolCatalogEntry{
			Name:       t.Name,
			Parameters: parameterNames(t.Parameters),
		})
	}
	return entries, nil
}

// CallTool invokes a named tool. Unknown-tool rejections are surfaced as
// ErrUnknownCapability so the caller can refresh the catalog and retry once.
func (c *HTTPClient) CallTool(ctx context.Context, endpoint, credential, name string, args map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal tool args: %w", err)
	}

	url := strings.TrimRight(endpoint, "/") + "/tools/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build call tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read tool response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound || isUnknownToolBody(body) {
		return nil, fmt.Errorf("tool %s: %w", name, ErrUnknownCapability)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tool %s returned status %d", name, resp.StatusCode)
	}
	return json.RawMessage(body), nil
}

// parameterNames normalizes the two declared-parameter shapes into an
// ordered name list. Object keys are sorted for determinism.
func parameterNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList
	}

	var asSchema struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &asSchema); err == nil && len(asSchema.Properties) > 0 {
		names := make([]string, 0, len(asSchema.Properties))
		for name := range asSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObject); err == nil {
		names := make([]string, 0, len(asObject))
		for name := range asObject {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	return nil
}

func isUnknownToolBody(body []byte) bool {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	combined := strings.ToLower(e.Error + " " + e.Message)
	return strings.Contains(combined, "unknown tool") ||
		strings.Contains(combined, "unknown capability") ||
		strings.Contains(combined, "no such tool")
}
