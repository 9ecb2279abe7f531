package resilience

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Errors returned by Client.Do.
var (
	// ErrCircuitOpen is returned without contacting the provider while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrBodyNotReplayable is returned when a request body cannot be resent on retry.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the provider in the breaker, logs and registry.
	Name string

	// Timeout bounds each individual attempt (default: 10s).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries uint64

	// InitialInterval is the first backoff delay (default: 200ms).
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay (default: 2s).
	MaxInterval time.Duration

	// Breaker configures the circuit breaker (default: DefaultBreakerConfig(Name)).
	Breaker *BreakerConfig

	// Registry receives the client and its call outcomes for health reporting (optional).
	Registry *Registry

	// Logger for retries and breaker transitions.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the settings used for routing providers.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client is an HTTP client that retries transient failures behind a circuit breaker.
// Network errors and 5xx responses are retried; 4xx responses are returned as-is.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	logger     zerolog.Logger

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient creates a resilient client and registers it when a registry is configured.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}
	if breakerCfg.Name == "" {
		breakerCfg.Name = cfg.Name
	}

	logger := cfg.Logger.With().Str("provider", cfg.Name).Logger()

	c := &Client{
		name:            cfg.Name,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		breaker:         newBreaker[*http.Response](breakerCfg, logger),
		registry:        cfg.Registry,
		logger:          logger,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}

	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}

	return c
}

// Do executes the request. When every attempt ends in a 5xx the last response
// is returned with a nil error so callers can map the provider's error body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	retries := c.maxRetries
	if !replayable(req) {
		retries = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx)

	var (
		resp    *http.Response
		attempt int
	)

	operation := func() error {
		attempt++

		attemptReq := req.Clone(ctx)
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(errors.Join(ErrBodyNotReplayable, err))
			}
			attemptReq.Body = body
		}

		//nolint:bodyclose // the response is handed to the caller or discarded below
		r, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.httpClient.Do(attemptReq)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}

		if r != nil {
			discard(resp)
			resp = r
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Str("url", req.URL.Redacted()).
			Msg("retrying provider request")
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err != nil {
		c.recordFailure(err)
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return resp, nil
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the circuit breaker's request counters.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.name, err)
	}
}

// ServerError represents an HTTP 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func discard(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
