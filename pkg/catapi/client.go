// Package catapi provides the HTTP client for the cat image search API.
package catapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catproxy/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public cat API root.
const DefaultBaseURL = "https://api.thecatapi.com/v1"

// maxBodyBytes bounds how much of a search response is read.
const maxBodyBytes = 2 * 1024 * 1024

// Prometheus metrics for upstream calls.
var (
	catapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catapi_requests_total",
		Help: "Total cat API requests by status",
	}, []string{"status"})

	catapiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catapi_request_duration_seconds",
		Help:    "Cat API request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	catapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catapi_errors_total",
		Help: "Total cat API errors by class",
	}, []string{"class"})
)

// Image is one entry of a search response.
type Image struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.thecatapi.com/v1"
	BaseURL string

	// APIKey is sent as x-api-key when set (optional for the public API)
	APIKey string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout bounds a single request. Zero means no timeout.
	Timeout time.Duration
}

// DefaultConfig returns the configuration for the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "catproxy/0.1.0",
	}
}

// Client talks to the cat API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// New creates a new cat API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logging.NewLogger("catapi"),
	}, nil
}

// SearchImages requests one page of limit images.
// A limit <= 0 omits the parameter and lets the API pick its default of one image.
func (c *Client) SearchImages(ctx context.Context, limit int) ([]Image, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return c.search(ctx, query)
}

// FetchPage fetches a single page of pageSize images.
// The search endpoint returns random images, so pageNum only tags the log line.
func (c *Client) FetchPage(ctx context.Context, pageNum, pageSize int) ([]Image, error) {
	images, err := c.SearchImages(ctx, pageSize)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Int("page", pageNum).Int("images", len(images)).Msg("Page fetched")
	return images, nil
}

// RandomImage returns the first image of an unparameterised search.
func (c *Client) RandomImage(ctx context.Context) (Image, error) {
	images, err := c.search(ctx, nil)
	if err != nil {
		return Image{}, err
	}
	if len(images) == 0 {
		return Image{}, ErrNoImages
	}
	return images[0], nil
}

func (c *Client) search(ctx context.Context, query url.Values) ([]Image, error) {
	endpoint := c.baseURL + "/images/search"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("x-api-key", c.config.APIKey)
	}

	startTime := time.Now()
	defer func() {
		catapiRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", endpoint).Msg("Cat API request failed")
		catapiRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&StatusError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		})
	}
	defer resp.Body.Close()

	catapiRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.logger.Warn().
			Str("url", endpoint).
			Int("status", resp.StatusCode).
			Msg("Cat API returned non-success status")
		return nil, c.fail(&StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    resp.Status,
		})
	}

	var images []Image
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&images); err != nil {
		return nil, c.fail(&StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid search response",
			Err:        err,
		})
	}
	// a literal null decodes without error
	if images == nil {
		return nil, c.fail(&StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "search response is not an array",
		})
	}

	c.logger.Debug().
		Str("url", endpoint).
		Int("images", len(images)).
		Msg("Cat API request complete")

	return images, nil
}

func (c *Client) fail(err *StatusError) error {
	catapiErrorsTotal.WithLabelValues(string(err.ErrorClass)).Inc()
	return err
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
