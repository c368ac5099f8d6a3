// Package kbsec is the primary market-data adapter (KB Securities
// Vietnam). It normalizes the provider's wire shapes and error signals
// into the uniform provider contract.
package kbsec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"vnmonitor/internal/httpx"
	"vnmonitor/internal/provider"
)

const defaultBaseURL = "https://api.kbsec.com.vn/market/v1"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=kbsec_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIClient is a low-level client for the KB Securities market API.
type APIClient struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	query      url.Values
}

// APIClientOption is a configuration option for the API client.
type APIClientOption func(*APIClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) APIClientOption {
	return func(c *APIClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) APIClientOption {
	return func(c *APIClient) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) APIClientOption {
	return func(c *APIClient) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewAPIClient creates a new API client. The key is optional; without it
// the provider serves the anonymous (tighter) quota.
func NewAPIClient(key string, options ...APIClientOption) (*APIClient, error) {
	c := &APIClient{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	if key != "" {
		c.header.Set("X-Api-Key", key)
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// envelope is the provider's standard response wrapper.
type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// get issues one API call and decodes data into out, mapping the
// provider's throttling and missing-resource signals onto the sentinel
// errors before anything else sees them.
func (c *APIClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("kbsec: bad url %q: %w", path, err)
	}
	q := u.Query()
	for k, vs := range c.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kbsec %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("kbsec %s: %w", path, provider.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("kbsec %s: %w", path, provider.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("kbsec %s -> %d: %s", path, resp.StatusCode, httpx.Snippet(resp.Body, 2<<10))
	}

	var env envelope
	if err := httpx.DecodeJSON(resp, &env); err != nil {
		return fmt.Errorf("kbsec %s: %w", path, err)
	}
	switch env.Code {
	case "", "OK", "SUCCESS":
	case "RATE_LIMIT_EXCEEDED", "QUOTA_EXCEEDED":
		return fmt.Errorf("kbsec %s: %s: %w", path, env.Message, provider.ErrRateLimited)
	case "SYMBOL_NOT_FOUND", "NOT_FOUND":
		return fmt.Errorf("kbsec %s: %s: %w", path, env.Message, provider.ErrNotFound)
	default:
		return fmt.Errorf("kbsec %s: provider error code=%q msg=%q", path, env.Code, env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("kbsec %s: decode data: %w", path, err)
	}
	return nil
}
