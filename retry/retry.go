// Package retry wraps remote calls with exponential backoff for throttling
// and transient failures.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
)

// Policy configures Do. The zero value never retries.
type Policy struct {
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffFactor float64
	MaxBackoff    time.Duration

	// Jitter returns the random component added to every wait.
	// Nil means uniform in [0, 1s).
	Jitter func() time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns 5 retries starting at 1s, doubling, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    5,
		BackoffBase:   time.Second,
		BackoffFactor: 2,
		MaxBackoff:    30 * time.Second,
	}
}

// Backoff returns the wait before retry number attempt (0-based):
// min(base * factor^attempt + jitter, maxBackoff).
func (p Policy) Backoff(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	wait := time.Duration(float64(p.BackoffBase)*math.Pow(factor, float64(attempt))) + p.jitter()
	if p.MaxBackoff > 0 && (wait > p.MaxBackoff || wait < 0) {
		wait = p.MaxBackoff
	}
	return wait
}

func (p Policy) jitter() time.Duration {
	if p.Jitter != nil {
		return p.Jitter()
	}
	return rand.N(time.Second)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs call, retrying throttling and transient failures while the retry
// budget lasts. Fatal errors and the last error after the budget is spent
// are returned unchanged.
func Do[T any](ctx context.Context, p Policy, op string, call func(context.Context) (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		res, err := call(ctx)
		if err == nil {
			return res, nil
		}

		class := Classify(err)
		if class == Fatal || attempt >= p.MaxRetries || ctx.Err() != nil {
			return res, err
		}

		wait := p.Backoff(attempt)
		logger.Warn(ctx, "retrying remote call",
			"op", op,
			"class", class.String(),
			"attempt", attempt+1,
			"max_retries", p.MaxRetries,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if serr := p.sleep(ctx, wait); serr != nil {
			return res, err
		}
	}
}

// Run is Do for calls that only return an error.
func Run(ctx context.Context, p Policy, op string, call func(context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}
