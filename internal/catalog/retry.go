package catalog

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// errStale signals that a conditional write matched no row because the
// version moved underneath it.
var errStale = errors.New("stale version")

// retryOnStale runs fn until it returns something other than errStale, backing
// off exponentially with jitter: 0, 10, 20, 40, 80 ms. Only errStale is retried;
// when attempts run out ErrVersionConflict is returned.
func retryOnStale(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; attempt < defaultMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := defaultBaseDelay * time.Duration(1<<(attempt-1))
			jitter := time.Duration(float64(delay) * defaultJitterFactor * (rand.Float64()*2 - 1))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay + jitter):
			}
		}

		err := fn(ctx)
		if !errors.Is(err, errStale) {
			return err
		}
	}

	return ErrVersionConflict
}
