package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noa10/mataresit-sub011/pkg/api"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an unexpected error body is read.
const maxErrorBody = 64 << 10

// Client calls the search HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     clientConfig
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	cfg := clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(&cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, cfg: cfg}, nil
}

// Search runs one search. A response with Success=false and no results is not an error.
func (c *Client) Search(ctx context.Context, req api.SearchRequest) (api.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return api.SearchResponse{}, fmt.Errorf("encode request: %w", err)
	}

	var resp api.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/search", bytes.NewReader(body), &resp); err != nil {
		return api.SearchResponse{}, err
	}
	return resp, nil
}

// Health returns the server health report. A 503 report is returned without error.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable && resp.Status != "" {
		return resp, nil
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.apiKey)
	}
	if c.cfg.userID != "" {
		req.Header.Set(api.HeaderUserID, c.cfg.userID)
	}
	if c.cfg.teamID != "" {
		req.Header.Set(api.HeaderTeamID, c.cfg.teamID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode == http.StatusServiceUnavailable && path == "/health" {
		_ = json.Unmarshal(data, out)
	}
	return decodeError(resp.StatusCode, data)
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status}
	var er api.ErrorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Code != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Message
		if er.Stage != nil {
			apiErr.Stage = *er.Stage
		}
		return apiErr
	}
	apiErr.Code = api.ErrorResponseCodeInternalError
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
