// Package upstream provides the HTTP client for the game catalog API and the
// failover resolver that spreads requests across candidate proxy hosts.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/gamepasses-api/pkg/logging"
	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
)

// DefaultMaxBodyBytes caps how much of an upstream body is read.
const DefaultMaxBodyBytes = 8 << 20

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_upstream_requests_total",
		Help: "Total upstream requests by host and status",
	}, []string{"host", "status"})

	upstreamRequestDuration = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamepasses_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by host",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	upstreamErrorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	upstreamBadPayloadTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_upstream_bad_payload_total",
		Help: "Responses that could not be decoded and were treated as an empty page",
	}, []string{"host"})
)

// Page is one page of a cursor-paginated catalog listing.
type Page struct {
	// Data holds the raw list entries; decoding is left to the caller.
	Data []json.RawMessage

	// NextPageCursor is empty on the last page.
	NextPageCursor string
}

// envelope is the wire shape shared by all catalog listings.
type envelope struct {
	PreviousPageCursor *string           `json:"previousPageCursor"`
	NextPageCursor     *string           `json:"nextPageCursor"`
	Data               []json.RawMessage `json:"data"`
}

// Config holds the client configuration.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration

	// MaxBodyBytes is the largest body accepted; 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:    "gamepasses-api/1.0",
		Timeout:      10 * time.Second,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Client issues single GET requests against one upstream host at a time.
// It never retries; trying other hosts is the Resolver's job.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("upstream-client"),
	}, nil
}

// FetchPage performs one GET against host+path and decodes the listing envelope.
//
// Transport failures, non-200 statuses, oversized and empty bodies are
// returned as *Error.
// A body that is not a valid envelope is treated as an empty last page.
func (c *Client) FetchPage(ctx context.Context, host, path string) (*Page, error) {
	url := strings.TrimRight(host, "/") + path

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("host", host).
		Str("path", path).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(host, "network_error").Inc()
		return nil, &Error{
			Host:    host,
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassStatus)).Inc()
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.config.MaxBodyBytes))
		return nil, &Error{
			Host:       host,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassStatus,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &Error{
			Host:       host,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	if int64(len(body)) > c.config.MaxBodyBytes {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassOversized)).Inc()
		return nil, &Error{
			Host:       host,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassOversized,
			Message:    fmt.Sprintf("body exceeds %d bytes", c.config.MaxBodyBytes),
		}
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassEmptyBody)).Inc()
		return nil, &Error{
			Host:       host,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassEmptyBody,
			Message:    "empty body",
		}
	}

	return c.decode(host, path, body), nil
}

// decode turns a response body into a Page. Undecodable bodies yield an empty page.
func (c *Client) decode(host, path string, body []byte) *Page {
	var env envelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		upstreamBadPayloadTotal.WithLabelValues(host).Inc()
		c.logger.Warn().
			Err(err).
			Str("host", host).
			Str("path", path).
			Int("body_bytes", len(body)).
			Msg("Undecodable upstream payload, treating as empty page")
		return &Page{}
	}

	page := &Page{Data: env.Data}
	if env.NextPageCursor != nil {
		page.NextPageCursor = *env.NextPageCursor
	}
	return page
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
