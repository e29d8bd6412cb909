package persistence

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

// HTTPStore is the client side of the document API. Views running in a
// separate process use it as their DocumentStore; the server end is served
// by the handlers package.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a store client for the given API base URL, e.g.
// "http://localhost:8080/api".
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (hs *HTTPStore) documentURL(worldID, name string) string {
	return fmt.Sprintf("%s/world/%s/config/%s",
		hs.baseURL, url.PathEscape(worldID), url.PathEscape(name))
}

func (hs *HTTPStore) do(ctx context.Context, method, url string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := hs.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		txt, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%s %s: %s: %s", method, url, res.Status, txt)
	}

	// Tolerant read: DELETE may return no content.
	data, err := io.ReadAll(res.Body)
	if err != nil || len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// GetDocument fetches a document body from the server.
func (hs *HTTPStore) GetDocument(ctx context.Context, worldID, name string) (json.RawMessage, error) {
	return hs.do(ctx, http.MethodGet, hs.documentURL(worldID, name), nil)
}

// PutDocument writes a document body to the server.
func (hs *HTTPStore) PutDocument(ctx context.Context, worldID, name string, body json.RawMessage) error {
	_, err := hs.do(ctx, http.MethodPut, hs.documentURL(worldID, name), body)
	return err
}

// DeleteDocument deletes a document on the server.
func (hs *HTTPStore) DeleteDocument(ctx context.Context, worldID, name string) error {
	_, err := hs.do(ctx, http.MethodDelete, hs.documentURL(worldID, name), nil)
	return err
}

// ListWorlds fetches the known world ids.
func (hs *HTTPStore) ListWorlds(ctx context.Context) ([]string, error) {
	data, err := hs.do(ctx, http.MethodGet, hs.baseURL+"/list-worlds", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Worlds []string `json:"worlds"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("malformed list-worlds response: %w", err)
	}
	return out.Worlds, nil
}

// CreateWorld creates the world container on the server.
func (hs *HTTPStore) CreateWorld(ctx context.Context, worldID string) error {
	body, _ := json.Marshal(map[string]string{"id": worldID})
	_, err := hs.do(ctx, http.MethodPost, hs.baseURL+"/world", body)
	return err
}

// DeleteWorld deletes the world and everything in it on the server.
func (hs *HTTPStore) DeleteWorld(ctx context.Context, worldID string) error {
	_, err := hs.do(ctx, http.MethodDelete,
		hs.baseURL+"/world/"+url.PathEscape(worldID), nil)
	return err
}

// Close closes the store (no-op for the HTTP client).
func (hs *HTTPStore) Close() error {
	return nil
}
