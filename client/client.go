// Package client talks to the sales backend. It resolves the current
// identity from the local development store or the authentication status
// endpoint, bridges that identity onto outbound requests, and exposes typed
// CRUD and dashboard operations with uniform error translation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Config configures the API client.
type Config struct {
	// BaseURL is the API root, e.g. "http://127.0.0.1:4280/api" through the
	// gateway or "http://127.0.0.1:8000/api" straight at the backend.
	BaseURL string
	// HTTPClient carries the transport; when nil a client wrapping the
	// request bridge around http.DefaultTransport is built.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client issues typed operations against the backend over the request
// bridge. Failures of any kind surface as *APIError; retry policy belongs to
// the caller since not every operation is idempotent.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a client bound to resolver. The resolver's cached identity is
// attached by the bridge on every call; New does not trigger a resolution.
func New(cfg Config, resolver *Resolver) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &Transport{Resolver: resolver, Logger: logger},
		}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}, nil
}

// do executes one request. out may be nil for operations without a response
// body; a 204 leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("encode request body: %v", err)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// No response at all: transport fault, no status code to carry.
		return &APIError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			RawBody:    string(raw),
		}
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return nil
}

// DashboardStats fetches the headline aggregates.
func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RecentSales fetches the most recent sales. limit <= 0 uses the server
// default.
func (c *Client) RecentSales(ctx context.Context, limit int) ([]RecentSale, error) {
	path := "/dashboard/recent"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var sales []RecentSale
	if err := c.do(ctx, http.MethodGet, path, nil, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// DashboardData fetches stats and recent sales in one round trip.
func (c *Client) DashboardData(ctx context.Context) (*DashboardData, error) {
	var data DashboardData
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListSales fetches every sale of the current user, newest sale date first.
func (c *Client) ListSales(ctx context.Context) ([]SaleItem, error) {
	var sales []SaleItem
	if err := c.do(ctx, http.MethodGet, "/sales", nil, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// CreateSale records a new sale.
func (c *Client) CreateSale(ctx context.Context, sale SaleCreate) (*SaleItem, error) {
	var created SaleItem
	if err := c.do(ctx, http.MethodPost, "/sales", sale, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Sale fetches one sale by ID.
func (c *Client) Sale(ctx context.Context, id string) (*SaleItem, error) {
	var sale SaleItem
	if err := c.do(ctx, http.MethodGet, "/sales/"+url.PathEscape(id), nil, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpdateSale applies a partial update to a sale.
func (c *Client) UpdateSale(ctx context.Context, id string, update SaleUpdate) (*SaleItem, error) {
	var updated SaleItem
	if err := c.do(ctx, http.MethodPut, "/sales/"+url.PathEscape(id), update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSale removes a sale.
func (c *Client) DeleteSale(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sales/"+url.PathEscape(id), nil, nil)
}

// UserInfo fetches the backend's view of the current user.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var info UserInfo
	if err := c.do(ctx, http.MethodGet, "/user", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
