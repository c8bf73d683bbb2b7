// Package geocode provides address geocoding for Italian facilities via the
// OpenStreetMap Nominatim API.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes facility addresses.
type Client interface {
	// Geocode resolves a single query to coordinates.
	Geocode(ctx context.Context, q Query) (*Result, error)

	// BatchGeocode resolves multiple queries concurrently, preserving order.
	BatchGeocode(ctx context.Context, queries []Query) ([]Result, error)
}

// Query describes one facility to geocode. City is required; the other
// fields tighten the match when present.
type Query struct {
	Name    string
	Address string
	City    string
	Region  string
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Matched     bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the Nominatim endpoint, used by tests and by
// deployments running their own instance.
func WithBaseURL(baseURL string) Option {
	return func(g *geocoder) {
		g.baseURL = baseURL
	}
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit. The public Nominatim
// instance allows at most 1 req/s.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithConcurrency bounds the number of in-flight requests during
// BatchGeocode.
func WithConcurrency(n int) Option {
	return func(g *geocoder) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

type geocoder struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	concurrency int
	cache       *resultCache
}

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent = "FindMyCureItalia/1.0"
)

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		baseURL:     defaultBaseURL,
		userAgent:   defaultUserAgent,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(1, 1),
		concurrency: 2,
		cache:       newResultCache(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
