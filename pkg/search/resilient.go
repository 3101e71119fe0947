package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DeplanckeLab/scfair/pkg/apperrors"
	"github.com/DeplanckeLab/scfair/pkg/retry"
)

// ResilienceOptions configures ResilientClient.
type ResilienceOptions struct {
	Retry          *retry.Config
	CircuitBreaker CircuitBreakerConfig
	// RequestTimeout bounds a single backend call. Zero means no per-call bound.
	RequestTimeout time.Duration
	// MaxQPS caps outgoing calls per second. Zero disables limiting.
	MaxQPS float64
	Burst  int
}

// ResilientClient wraps a Client with rate limiting, per-call timeouts,
// bounded retries and a circuit breaker. Callers above it only see success
// or a final error.
type ResilientClient struct {
	next    Client
	retry   *retry.Config
	breaker *CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

var _ Client = (*ResilientClient)(nil)

// NewResilientClient wraps next.
func NewResilientClient(next Client, opts ResilienceOptions, logger *zap.Logger) *ResilientClient {
	c := &ResilientClient{
		next:    next,
		retry:   opts.Retry,
		breaker: NewCircuitBreaker(opts.CircuitBreaker),
		timeout: opts.RequestTimeout,
		logger:  logger.Named("search-client"),
	}
	if c.retry == nil {
		c.retry = retry.DefaultConfig()
	}
	if opts.MaxQPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxQPS), burst)
	}
	return c
}

// Search runs req through the resilience chain.
func (c *ResilientClient) Search(ctx context.Context, index string, req *Request) (*Response, error) {
	if ok, err := c.breaker.Allow(); !ok {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCircuitOpen, err)
	}

	attempt := 0
	resp, err := retry.DoIfRetryableWithResult(ctx, c.retry, func() (*Response, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		resp, err := c.next.Search(callCtx, index, req)
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = timeoutError{err: err}
		}
		if err != nil {
			c.logger.Debug("Search attempt failed",
				zap.String("index", index),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return resp, err
	})

	if err != nil {
		switch {
		case ctx.Err() != nil:
			c.breaker.Abandon()
		case retry.IsRetryable(err):
			c.breaker.RecordFailure()
		default:
			// The backend answered; the request itself was rejected.
			c.breaker.RecordSuccess()
		}
		return nil, err
	}

	c.breaker.RecordSuccess()
	return resp, nil
}

// Ping forwards to the wrapped client when it supports pinging.
func (c *ResilientClient) Ping(ctx context.Context) error {
	if p, ok := c.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// CircuitState exposes the breaker state for health reporting.
func (c *ResilientClient) CircuitState() CircuitState {
	return c.breaker.State()
}

func (c *ResilientClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
