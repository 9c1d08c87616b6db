package failqueue

import "time"

const (
	backoffBase    = 5 * time.Minute
	backoffCeiling = 6 * time.Hour
)

// Backoff returns the delay before the next retry attempt for an item with
// the given retry count. The delay doubles with each attempt and is capped
// at a ceiling. Pure and deterministic: the same retry count always yields
// the same delay.
//
//	Backoff(0) -> 5m
//	Backoff(1) -> 10m
//	Backoff(2) -> 20m
//	...
//	Backoff(n) -> 6h once the doubling passes the ceiling
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	delay := backoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= backoffCeiling {
			return backoffCeiling
		}
	}
	return delay
}
