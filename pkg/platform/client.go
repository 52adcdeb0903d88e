package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// Fetcher retrieves tenant metadata from the platform API. Declared as an
// interface so the resolution client can be tested against a stub.
type Fetcher interface {
	FetchTenant(ctx context.Context, subdomain string) (*tenant.Tenant, error)
}

// APIClient fetches tenant metadata over HTTP from the platform API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// APIClientOption configures the API client.
type APIClientOption func(*APIClient)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) APIClientOption {
	return func(c *APIClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewAPIClient creates a platform API client. baseURL is the API root
// without a trailing slash; timeout bounds each individual request.
func NewAPIClient(baseURL string, timeout time.Duration, opts ...APIClientOption) *APIClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchTenant retrieves the tenant for a subdomain. All failures come back
// as *ResolutionError classified by kind; the caller layers retry and the
// circuit breaker on top.
func (c *APIClient) FetchTenant(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/platform/tenants/by-subdomain/%s", c.baseURL, url.PathEscape(subdomain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ResolutionError{Kind: KindUnknown, Subdomain: subdomain, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ResolutionError{Kind: classifyTransportError(err), Subdomain: subdomain, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp, subdomain)
	}

	var t tenant.Tenant
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, &ResolutionError{Kind: KindUnknown, Subdomain: subdomain, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &t, nil
}

// classifyTransportError maps a client-side failure to an error kind.
func classifyTransportError(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// classifyStatus maps a non-200 response to a ResolutionError.
func classifyStatus(resp *http.Response, subdomain string) *ResolutionError {
	e := &ResolutionError{
		Subdomain:  subdomain,
		HTTPStatus: resp.StatusCode,
		Err:        fmt.Errorf("platform api returned %s", resp.Status),
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.Kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 500:
		e.Kind = KindUnavailable
	default:
		e.Kind = KindUnknown
	}
	return e
}

// parseRetryAfter handles both forms of the header: delay seconds and an
// HTTP date. Returns 0 when the header is absent or malformed.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
