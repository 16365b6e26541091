package client

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var dsisTokenRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dsis_token_refreshes_total",
	Help: "Total token refreshes triggered by 401 responses",
})

// outcome tags the result of a single request attempt.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeUnauthorized
	outcomeFatal
)

// attemptResult is what one authenticated attempt produced.
type attemptResult struct {
	outcome outcome
	body    []byte
	err     error
}

// tokenSource holds the bearer token of one client.
type tokenSource interface {
	current() string
	refresh(ctx context.Context) (string, error)
}

// withTokenRefresh runs attempt with the current token. If the attempt
// reports outcomeUnauthorized, the token is refreshed once and the attempt is
// repeated once with the new token. There is no further retry: a second 401
// or any fatal outcome is returned as is.
func withTokenRefresh(ctx context.Context, tokens tokenSource, attempt func(ctx context.Context, token string) attemptResult) ([]byte, error) {
	res := attempt(ctx, tokens.current())
	if res.outcome != outcomeUnauthorized {
		return res.body, res.err
	}

	log.Debug().Msg("Received 401, refreshing token")

	token, err := tokens.refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh token after 401: %w", err)
	}
	dsisTokenRefreshesTotal.Inc()

	res = attempt(ctx, token)
	if res.outcome == outcomeUnauthorized {
		log.Warn().Msg("Still unauthorized after token refresh")
	}
	return res.body, res.err
}
