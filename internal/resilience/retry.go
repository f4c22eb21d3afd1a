package resilience

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times, doubling the backoff between failures.
// The final error is returned unwrapped so callers can inspect it. Returns
// ctx.Err() if the context is cancelled while waiting.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
