package infra

import "time"

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// Backoff returns the reconnect delay for the given retry count:
// base * 2^retry, capped. Negative counts return the base delay.
func Backoff(retry int) time.Duration {
	if retry < 0 {
		return backoffBase
	}
	// 2^26s already exceeds the cap; avoid shifting into overflow.
	if retry > 26 {
		return backoffMax
	}
	d := backoffBase * time.Duration(1<<retry)
	if d > backoffMax {
		return backoffMax
	}
	return d
}
