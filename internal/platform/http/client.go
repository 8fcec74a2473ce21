package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client fetches remote effectiveness tables with rate limiting and retries
type Client struct {
	HTTPClient      *http.Client
	Limiter         *rate.Limiter
	MaxRetryTimeout time.Duration
	logger          zerolog.Logger
}

// ClientOptions holds options for creating a new Client.
// Zero values mean a 30 second timeout, 5 requests per second and 30 seconds of retries.
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a client
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout <= 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &Client{
		HTTPClient:      &http.Client{Timeout: opts.Timeout},
		Limiter:         rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		MaxRetryTimeout: opts.MaxRetryTimeout,
		logger:          log.With().Str("component", "http_client").Logger(),
	}
}

// DoRequest sends req until it gets a 200 or the retry budget runs out.
// Every attempt waits for the limiter; 4xx other than 429 fails at once.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	attempt := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.HTTPClient.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		if r.StatusCode == http.StatusOK {
			resp = r
			return nil
		}

		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, r.Body)
		r.Body.Close()

		statusErr := &HTTPStatusError{StatusCode: r.StatusCode, URL: req.URL.String()}
		if r.StatusCode >= 400 && r.StatusCode < 500 && r.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = c.MaxRetryTimeout

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("url", req.URL.String()).Dur("retry_in", wait).Msg("Request failed, retrying")
	}
	if err := backoff.RetryNotify(attempt, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// HTTPStatusError is a response other than 200
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}
