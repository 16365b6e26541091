// Package auth obtains bearer tokens for the DSIS data server from its
// OpenID Connect token endpoint using the resource owner password grant.
package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTokenURL is the DecisionSpace Integration Server token endpoint.
const DefaultTokenURL = "https://dssecurity1242.dsis.equinor.com:9243" +
	"/auth/realms/DecisionSpace_Integration_Server/protocol/openid-connect/token"

// DefaultClientID is the OAuth client registered for DSIS data access.
const DefaultClientID = "dsis-data"

var tokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dsis_token_requests_total",
	Help: "Total token requests by result",
}, []string{"result"})

// Provider returns a fresh bearer token on every call.
// Implementations must not retry internally.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context) (string, error)

// Token calls f(ctx).
func (f ProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Credentials identify a DSIS user. They are loaded once at startup.
type Credentials struct {
	Username string
	Password string
}

// String redacts the password so credentials can't leak through %v.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: <redacted>}", c.Username)
}

// Config holds the password grant configuration.
type Config struct {
	// TokenURL is the token endpoint (default: DefaultTokenURL)
	TokenURL string

	// ClientID sent as client_id (default: DefaultClientID)
	ClientID string

	Credentials Credentials

	// InsecureSkipVerify disables TLS certificate checks. The DSIS test
	// environment uses self-signed certificates, so this defaults to true in
	// DefaultConfig.
	InsecureSkipVerify bool

	Timeout time.Duration
}

// DefaultConfig returns a configuration for the given credentials.
func DefaultConfig(creds Credentials) Config {
	return Config{
		TokenURL:           DefaultTokenURL,
		ClientID:           DefaultClientID,
		Credentials:        creds,
		InsecureSkipVerify: true,
		Timeout:            30 * time.Second,
	}
}

// PasswordGrant fetches tokens with grant_type=password.
type PasswordGrant struct {
	http   *resty.Client
	config Config
	logger zerolog.Logger
}

// NewPasswordGrant creates a token provider.
func NewPasswordGrant(cfg Config) (*PasswordGrant, error) {
	if cfg.Credentials.Username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "dsis-auth").Logger()

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.InsecureSkipVerify {
		logger.Warn().Str("token_url", cfg.TokenURL).Msg("TLS certificate verification disabled for token endpoint")
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}

	return &PasswordGrant{
		http:   httpClient,
		config: cfg,
		logger: logger,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token performs one POST to the token endpoint.
func (p *PasswordGrant) Token(ctx context.Context) (string, error) {
	start := time.Now()

	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "password",
			"client_id":  p.config.ClientID,
			"username":   p.config.Credentials.Username,
			"password":   p.config.Credentials.Password,
		}).
		Post(p.config.TokenURL)
	if err != nil {
		tokenRequestsTotal.WithLabelValues("network_error").Inc()
		return "", &AuthError{Message: "token endpoint unreachable", Err: err}
	}

	if !resp.IsSuccess() {
		tokenRequestsTotal.WithLabelValues("rejected").Inc()
		p.logger.Warn().
			Int("status_code", resp.StatusCode()).
			Msg("Token request rejected")
		return "", &AuthError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		tokenRequestsTotal.WithLabelValues("invalid_response").Inc()
		return "", &AuthError{StatusCode: resp.StatusCode(), Message: "decode token response", Err: err}
	}
	if body.AccessToken == "" {
		tokenRequestsTotal.WithLabelValues("invalid_response").Inc()
		return "", &AuthError{StatusCode: resp.StatusCode(), Message: "response has no access_token"}
	}

	tokenRequestsTotal.WithLabelValues("ok").Inc()
	p.logger.Debug().
		Int("expires_in", body.ExpiresIn).
		Dur("duration", time.Since(start)).
		Msg("Obtained access token")

	return body.AccessToken, nil
}
