// Package off looks up products by barcode against the OpenFoodFacts API
// and normalizes the responses into domain records.
package off

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/nutriscan/backend/internal/models"
)

const (
	// DefaultBaseURL is the public OpenFoodFacts endpoint.
	DefaultBaseURL = "https://world.openfoodfacts.org"

	// DefaultTimeout bounds a single lookup, including body read.
	DefaultTimeout = 20 * time.Second

	// DefaultUserAgent identifies this backend to OpenFoodFacts, which asks
	// API consumers to send a custom user agent.
	DefaultUserAgent = "NutriScan-Backend/1.0 (https://github.com/nutriscan/backend)"
)

// Client fetches product records by barcode. It holds no mutable state and
// is safe for concurrent use by multiple scan sessions.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	userAgent  string
}

// NewClient builds a client for the given endpoint. Empty arguments fall
// back to the OpenFoodFacts defaults.
func NewClient(baseURL, userAgent string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, baseURL)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    u,
		userAgent:  userAgent,
	}, nil
}

// FetchProduct resolves a barcode to a normalized ProductRecord.
//
// The barcode is trimmed first; an empty result fails with ErrInvalidBarcode
// before any request is issued. Transport failures (including timeouts)
// surface as *RequestError, non-2xx responses as *StatusError, unreadable
// bodies as *DecodeError, and a well-formed "not found" reply as
// ErrProductNotFound. Cancelling ctx aborts the request and returns the
// context's error.
func (c *Client) FetchProduct(ctx context.Context, barcode string) (*models.ProductRecord, error) {
	code := strings.TrimSpace(barcode)
	if code == "" {
		return nil, ErrInvalidBarcode
	}

	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, "api", "v2", "product", code+".json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RequestError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var envelope productEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DecodeError{Cause: err}
	}

	if envelope.Status != 1 || envelope.Product == nil {
		return nil, ErrProductNotFound
	}

	return mapProduct(code, envelope.Product), nil
}
