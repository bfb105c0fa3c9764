package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ExponentialBackoff grows from initial towards maxInterval by multiplier, with the
// library's default jitter. A zero maxElapsed never stops.
func ExponentialBackoff(initial, maxInterval time.Duration, multiplier float64, maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.Multiplier = multiplier
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return b
}
