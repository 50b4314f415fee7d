package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerengine/internal/domain"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Retrier implements usecase.Retrier with exponential backoff. Only errors that
// domain.IsRetryable accepts are retried; everything else is returned at once.
type Retrier struct {
	cfg     Config
	logger  zerolog.Logger
	onRetry func(err error)
}

// New creates a new Retrier.
func New(cfg Config, logger zerolog.Logger) *Retrier {
	return &Retrier{cfg: cfg, logger: logger}
}

// OnRetry registers a hook invoked before every retry.
func (r *Retrier) OnRetry(fn func(err error)) *Retrier {
	r.onRetry = fn
	return r
}

// Retry executes an operation with exponential backoff on retryable errors.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	retryCount := 0

	err := backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.cfg.MaxRetries {
			return backoff.Permanent(err)
		}

		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("concurrency conflict, retrying")

		if r.onRetry != nil {
			r.onRetry(err)
		}

		return err
	}, backoff.WithContext(b, ctx))

	return err
}
