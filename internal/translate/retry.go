package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziedsayadi/Cvmodel/internal/llm"
)

// ModelTier selects which completion model variant services an attempt.
type ModelTier int

const (
	TierPrimary ModelTier = iota
	TierFallback
)

func (t ModelTier) String() string {
	if t == TierFallback {
		return "fallback"
	}
	return "primary"
}

// ErrRetriesExhausted marks a transient failure that survived every allowed
// attempt, including the fallback tier.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Operation is one attempt against the text service, parameterized by tier.
type Operation func(ctx context.Context, tier ModelTier) (string, error)

// Retryer reruns transient upstream failures with exponential backoff,
// escalating to the fallback model tier from a fixed attempt onward.
// Rate limiting and short outages are steady-state conditions for a shared
// text service; the cheaper tier trades quality for availability before the
// whole operation gives up.
type Retryer struct {
	MaxAttempts     int
	FallbackAttempt int
	BackoffSeed     time.Duration
	Logger          zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func (r *Retryer) maxAttempts() int {
	if r.MaxAttempts > 0 {
		return r.MaxAttempts
	}
	return 4
}

func (r *Retryer) fallbackAttempt() int {
	if r.FallbackAttempt > 0 {
		return r.FallbackAttempt
	}
	return 3
}

func (r *Retryer) backoffSeed() time.Duration {
	if r.BackoffSeed > 0 {
		return r.BackoffSeed
	}
	return 400 * time.Millisecond
}

func (r *Retryer) sleepFn() func(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep
	}
	return sleepWithContext
}

// Do runs op until it succeeds, fails permanently, or attempts run out.
// Transient failures back off with doubling delays; from the fallback
// attempt onward op is invoked with TierFallback. Permanent failures
// propagate immediately.
func (r *Retryer) Do(ctx context.Context, op Operation) (string, error) {
	max := r.maxAttempts()
	delay := r.backoffSeed()

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		tier := TierPrimary
		if attempt >= r.fallbackAttempt() {
			tier = TierFallback
		}

		result, err := op(ctx, tier)
		if err == nil {
			return result, nil
		}
		if !llm.IsTransient(err) {
			return "", err
		}
		lastErr = err

		if attempt == max {
			break
		}

		r.Logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("tier", tier.String()).
			Dur("backoff", delay).
			Msg("transient upstream failure, backing off")

		if sleepErr := r.sleepFn()(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
		delay *= 2
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, max, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
