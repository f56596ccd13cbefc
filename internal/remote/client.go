// Package remote reads bookings from the storefront API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// ErrUnavailable wraps every failure to get a usable answer from the API.
// Reconciliation treats it as an empty source.
var ErrUnavailable = errors.New("remote: bookings API unavailable")

// IsUnavailable reports whether err came from an unreachable or failing API.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// maxBody caps list responses.
const maxBody = 8 << 20

// Config configures the API client.
type Config struct {
	// BaseURL is the API root, e.g. "https://shop.example/api".
	BaseURL string

	// Timeout bounds a single request. Defaults to 10s.
	Timeout time.Duration

	// RPS limits outgoing requests. Zero disables limiting.
	RPS   float64
	Burst int

	// HTTPClient is an optional custom client (for testing).
	HTTPClient *http.Client
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("remote: empty base URL")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("remote: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{httpClient: httpClient, baseURL: base, limiter: limiter}, nil
}

// ListBookings fetches the raw records for a scope. Any envelope shape the
// API uses is accepted.
func (c *Client) ListBookings(ctx context.Context, scope models.Scope) ([]models.RawRecord, error) {
	q := url.Values{}
	switch scope.Kind {
	case models.ScopeUser:
		q.Set("scope", "user")
		if email := booking.NormalizeEmail(scope.UserEmail); email != "" {
			q.Set("email", email)
		}
	case models.ScopePending:
		q.Set("scope", "pending")
	default:
		q.Set("scope", "all")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bookings?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	records, err := booking.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return records, nil
}
