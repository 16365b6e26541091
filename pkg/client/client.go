// Package client provides the authenticated DSIS/Recall HTTP client: bearer
// tokens with a single refresh on 401, lenient JSON decoding, and an optional
// Redis response cache for lookups by id.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/dsis-recall-client/pkg/auth"
	"github.com/Sternrassler/dsis-recall-client/pkg/cache"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for DSIS client operations.
var (
	dsisRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsis_requests_total",
		Help: "Total DSIS requests by operation and status",
	}, []string{"operation", "status"})

	dsisRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dsis_request_duration_seconds",
		Help:    "DSIS request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	dsisErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsis_errors_total",
		Help: "Total DSIS request errors by class",
	}, []string{"class"})
)

// Client is the DSIS data server client.
//
// The bearer token is guarded by a mutex, but a refresh triggered by one
// call does not coordinate with other in-flight calls. Share a Client across
// goroutines only if an occasional extra token request is acceptable.
type Client struct {
	httpClient *http.Client
	tokens     auth.Provider
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger

	mu    sync.Mutex
	token string
}

// Config holds the client configuration.
type Config struct {
	// Model selects entity names and the service root. Fixed for the
	// lifetime of the client.
	Model Model

	// Tokens obtains bearer tokens (REQUIRED)
	Tokens auth.Provider

	// Cache is an optional Redis response cache for lookups by id and the
	// project list.
	Cache *cache.Manager

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification. The DSIS
	// servers present self-signed certificates.
	InsecureSkipVerify bool

	UserAgent string
}

// DefaultConfig returns the default configuration for model.
func DefaultConfig(model Model, tokens auth.Provider) Config {
	return Config{
		Model:              model,
		Tokens:             tokens,
		Timeout:            60 * time.Second,
		InsecureSkipVerify: true,
		UserAgent:          "dsis-recall-client/0.1.0",
	}
}

// New creates a new DSIS client and obtains its first token.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	if err := cfg.Model.validate(); err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger := log.With().
		Str("component", "dsis-client").
		Str("model", cfg.Model.Name).
		Logger()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		logger.Warn().Str("base_url", cfg.Model.BaseURL).Msg("TLS certificate verification disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		tokens: cfg.Tokens,
		cache:  cfg.Cache,
		config: cfg,
		logger: logger,
	}

	token, err := cfg.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial token: %w", err)
	}
	c.token = token

	return c, nil
}

// Model returns the data model the client was built with.
func (c *Client) Model() Model {
	return c.config.Model
}

func (c *Client) current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// resourceURL joins the service root, an optional resource path and query.
func (c *Client) resourceURL(resourcePath, query string) string {
	u := c.config.Model.BaseURL
	if resourcePath != "" {
		u += "/" + resourcePath
	}
	if query != "" {
		u += "?" + query
	}
	return u
}

// Get fetches resourcePath (relative to the model's service root) with the
// raw OData query string and returns the decoded JSON object.
func (c *Client) Get(ctx context.Context, resourcePath, query string) (map[string]any, error) {
	return c.get(ctx, "get", resourcePath, query)
}

func (c *Client) get(ctx context.Context, operation, resourcePath, query string) (map[string]any, error) {
	url := c.resourceURL(resourcePath, query)
	body, err := c.fetch(ctx, operation, url)
	if err != nil {
		return nil, err
	}
	return c.decode(operation, url, body)
}

func (c *Client) decode(operation, url string, body []byte) (map[string]any, error) {
	v, err := decodeLenient(body)
	if err != nil {
		dsisErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().Err(err).Str("operation", operation).Str("url", url).Msg("Invalid JSON response")
		return nil, &RequestError{
			StatusCode: http.StatusOK,
			ErrorClass: ErrorClassDecode,
			URL:        url,
			Message:    "invalid JSON response",
			Err:        err,
		}
	}
	return v, nil
}

// fetch performs an authenticated GET with one token refresh on 401.
func (c *Client) fetch(ctx context.Context, operation, url string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		dsisRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	return withTokenRefresh(ctx, c, func(ctx context.Context, token string) attemptResult {
		return c.attempt(ctx, operation, url, token)
	})
}

// attempt issues exactly one GET request.
func (c *Client) attempt(ctx context.Context, operation, url, token string) attemptResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return attemptResult{outcome: outcomeFatal, err: fmt.Errorf("create request: %w", err)}
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("url", url).
		Str("request_id", requestID).
		Msg("GET request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Str("request_id", requestID).Msg("HTTP request failed")
		dsisErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		dsisRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		return attemptResult{outcome: outcomeFatal, err: &RequestError{
			ErrorClass: ErrorClassNetwork,
			URL:        url,
			Message:    "request failed",
			Err:        err,
		}}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	dsisRequestsTotal.WithLabelValues(operation, status).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		dsisErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return attemptResult{outcome: outcomeFatal, err: &RequestError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			URL:        url,
			Message:    "read response body",
			Err:        err,
		}}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return attemptResult{outcome: outcomeOK, body: body}
	}

	errClass := classifyStatus(resp.StatusCode)
	dsisErrorsTotal.WithLabelValues(string(errClass)).Inc()

	c.logger.Warn().
		Str("operation", operation).
		Str("url", url).
		Str("request_id", requestID).
		Int("status_code", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("DSIS request error")

	reqErr := &RequestError{
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		URL:        url,
		Message:    bodySnippet(body),
	}
	if resp.StatusCode == http.StatusUnauthorized {
		reqErr.Err = ErrUnauthorized
		return attemptResult{outcome: outcomeUnauthorized, err: reqErr}
	}
	return attemptResult{outcome: outcomeFatal, err: reqErr}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
