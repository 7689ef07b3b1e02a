// Package catalog is the HTTP client for the store's product, recipe and
// query-log data service.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMalformedPayload is returned when the service answers 2xx with a body
// that is not valid JSON.
var ErrMalformedPayload = errors.New("catalog: malformed payload")

// StatusError reports a non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status code %d", e.Code)
}

// Client talks to the data service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL with a per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a client with a caller supplied *http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: hc}
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SearchProducts posts {"name"} to /search/ and returns the matches, each
// {product, location}.
func (c *Client) SearchProducts(ctx context.Context, name string) ([]gjson.Result, error) {
	return c.searchByName(ctx, "/search/", name)
}

// SearchRecipes posts {"name"} to /search_recipes/ and returns the matches,
// each {recipe, ingredients_details}.
func (c *Client) SearchRecipes(ctx context.Context, name string) ([]gjson.Result, error) {
	return c.searchByName(ctx, "/search_recipes/", name)
}

func (c *Client) searchByName(ctx context.Context, path, name string) ([]gjson.Result, error) {
	body, err := sjson.SetBytes(nil, "name", name)
	if err != nil {
		return nil, fmt.Errorf("build search body: %w", err)
	}

	res, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	return matches(res)
}

// FindProducts looks products up by name; each result carries an id.
func (c *Client) FindProducts(ctx context.Context, name string) ([]gjson.Result, error) {
	res, err := c.do(ctx, http.MethodGet, "/products/", url.Values{"name": {name}}, nil)
	if err != nil {
		return nil, err
	}
	return matches(res)
}

// matches unpacks a list reply. gjson wraps a lone object into a one-element
// array, so anything but a JSON array is rejected.
func matches(res gjson.Result) ([]gjson.Result, error) {
	if !res.IsArray() {
		return nil, ErrMalformedPayload
	}
	return res.Array(), nil
}

// BestRecipeByIngredients returns the recipe covering most of the given
// product ids.
func (c *Client) BestRecipeByIngredients(ctx context.Context, productIDs []string) (gjson.Result, error) {
	query := url.Values{}
	for _, id := range productIDs {
		query.Add("ingredient_ids", id)
	}
	return c.do(ctx, http.MethodPost, "/recipes/best-by-ingredients", query, nil)
}

// Recipe fetches {recipe, ingredients_details} for id.
func (c *Client) Recipe(ctx context.Context, id string) (gjson.Result, error) {
	return c.do(ctx, http.MethodGet, "/recipes/"+url.PathEscape(id), nil, nil)
}

// Logs returns the raw query-log listing.
func (c *Client) Logs(ctx context.Context, limit int) ([]byte, error) {
	res, err := c.do(ctx, http.MethodGet, "/logs/", url.Values{"limit": {strconv.Itoa(limit)}}, nil)
	if err != nil {
		return nil, err
	}
	return []byte(res.Raw), nil
}

// LogStats returns the raw query-log statistics.
func (c *Client) LogStats(ctx context.Context) ([]byte, error) {
	res, err := c.do(ctx, http.MethodGet, "/logs/stats", nil, nil)
	if err != nil {
		return nil, err
	}
	return []byte(res.Raw), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (gjson.Result, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("catalog %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read catalog response: %w", err)
	}

	slog.Debug("catalog request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &StatusError{Code: resp.StatusCode, Body: string(payload)}
	}
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, ErrMalformedPayload
	}
	return gjson.ParseBytes(payload), nil
}
