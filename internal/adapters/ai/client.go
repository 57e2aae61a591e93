package ai

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"mentor/internal/metrics"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

// Client wraps a ChatProvider with rate limiting and bounded retries.
// Transient provider failures are retried with linear backoff; once the
// retry budget is spent the call fails with ErrEngineUnavailable.
type Client struct {
	provider   ChatProvider
	limiter    *rate.Limiter
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

// ClientConfig holds engine client settings.
type ClientConfig struct {
	Model          string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestsPerMin int
}

// NewClient creates a rate-limited, retrying engine client.
func NewClient(provider ChatProvider, cfg ClientConfig) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMin > 0 {
		burst := cfg.RequestsPerMin / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), burst)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &Client{
		provider:   provider,
		limiter:    limiter,
		model:      cfg.Model,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
		log:        logger.Get().With("component", "engine_client", "provider", provider.Name()),
	}
}

// Provider returns the name of the wrapped backend.
func (c *Client) Provider() string {
	return c.provider.Name()
}

// Chat invokes the provider, retrying transient failures. The configured
// model is applied when the request does not name one.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.EngineRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "engine retry cancelled")
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "engine rate limit wait")
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			metrics.EngineCalls.WithLabelValues(c.provider.Name(), "success").Inc()
			return resp, nil
		}

		metrics.EngineCalls.WithLabelValues(c.provider.Name(), "error").Inc()
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "engine call cancelled")
		}

		c.log.Warnf("Engine call failed (attempt %d/%d): %v", attempt+1, c.maxRetries+1, err)
		lastErr = err
	}

	return nil, errors.Wrapf(errors.ErrEngineUnavailable, "engine failed after %d attempts: %v", c.maxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.provider.Chat(attemptCtx, req)
}
