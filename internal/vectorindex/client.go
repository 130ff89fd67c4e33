// Package vectorindex provides a minimal REST client for a managed
// Pinecone-style vector index: namespaced top-K query, id-keyed upsert and
// fetch. Metadata is carried as untyped maps; callers decode defensively.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Match is one ranked query result.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Client talks to a single index via its data-plane host.
type Client struct {
	host   string
	apiKey string
	client *http.Client
}

// Config configures an index client.
type Config struct {
	Host    string
	APIKey  string
	Timeout time.Duration
}

// New creates a client for one index host.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		host:   cfg.Host,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Query runs a top-K similarity query. An empty namespace queries the
// index's default namespace.
func (c *Client) Query(ctx context.Context, namespace string, vector []float64, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if namespace != "" {
		body["namespace"] = namespace
	}

	var resp struct {
		Matches []Match `json:"matches"`
	}
	if err := c.postJSON(ctx, c.host+"/query", body, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Upsert writes or replaces a single record by id.
func (c *Client) Upsert(ctx context.Context, namespace, id string, values []float64, metadata map[string]any) error {
	body := map[string]any{
		"vectors": []map[string]any{
			{
				"id":       id,
				"values":   values,
				"metadata": metadata,
			},
		},
	}
	if namespace != "" {
		body["namespace"] = namespace
	}
	return c.postJSON(ctx, c.host+"/vectors/upsert", body, nil)
}

// Fetch retrieves a record's metadata by id. The second return value is
// false when the id is absent from the index.
func (c *Client) Fetch(ctx context.Context, namespace, id string) (map[string]any, bool, error) {
	query := url.Values{}
	query.Set("ids", id)
	if namespace != "" {
		query.Set("namespace", namespace)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/vectors/fetch?"+query.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, false, httpError("GET", c.host+"/vectors/fetch", resp)
	}

	var out struct {
		Vectors map[string]struct {
			ID       string         `json:"id"`
			Metadata map[string]any `json:"metadata"`
		} `json:"vectors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decoding fetch response: %w", err)
	}

	record, ok := out.Vectors[id]
	if !ok {
		return nil, false, nil
	}
	return record.Metadata, true, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return httpError("POST", endpoint, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Api-Key", c.apiKey)
	}
}

func httpError(method, endpoint string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(detail) > 0 {
		return fmt.Errorf("vector index %s %s failed: %s: %s", method, endpoint, resp.Status, detail)
	}
	return fmt.Errorf("vector index %s %s failed: %s", method, endpoint, resp.Status)
}

// MetaString reads a string metadata field, tolerating absence.
func MetaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaInt reads an integer metadata field. Index metadata is untyped, so
// numbers arrive as float64 and sometimes as numeric strings.
func MetaInt(metadata map[string]any, key string) (int, bool) {
	switch v := metadata[key].(type) {
	case float64:
		return int(v), true
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// MetaBool reads a boolean metadata field, tolerating absence.
func MetaBool(metadata map[string]any, key string) bool {
	if v, ok := metadata[key].(bool); ok {
		return v
	}
	return false
}

// MetaStrings reads a string-array metadata field. Arrays decoded from
// JSON arrive as []any; values set in-process may already be []string.
// Non-string elements are rendered with fmt to avoid dropping data.
func MetaStrings(metadata map[string]any, key string) ([]string, bool) {
	switch raw := metadata[key].(type) {
	case []string:
		out := make([]string, len(raw))
		copy(out, raw)
		return out, true
	case []any:
		out := make([]string, len(raw))
		for i, v := range raw {
			if s, ok := v.(string); ok {
				out[i] = s
			} else {
				out[i] = fmt.Sprint(v)
			}
		}
		return out, true
	}
	return nil, false
}
