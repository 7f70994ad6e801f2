package scopes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DirectoryEntry is one match returned by the external resource directory.
// The directory never guarantees an entry for every requested identifier.
type DirectoryEntry struct {
	ID          string `json:"clientId"`
	DisplayName string `json:"name"`
	Status      string `json:"status"`
}

// DirectorySearcher resolves resource identifiers to display names. The full
// identifier set goes out in one request.
type DirectorySearcher interface {
	Search(ctx context.Context, ids []string) ([]DirectoryEntry, error)
}

// HTTPDirectory calls the resource directory's batch search endpoint.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory builds a directory client with a bounded request timeout.
func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	ClientIDs []string `json:"clientIds"`
}

// Search issues one batched lookup for the given identifiers.
func (d *HTTPDirectory) Search(ctx context.Context, ids []string) ([]DirectoryEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(searchRequest{ClientIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("scopes: encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/clients/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scopes: build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scopes: directory search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scopes: directory search: unexpected status %d", resp.StatusCode)
	}
	var entries []DirectoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("scopes: decode search response: %w", err)
	}
	return entries, nil
}
