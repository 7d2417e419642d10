package index

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// withRetry runs fn up to retryAttempts times with doubling backoff between
// attempts. Context cancellation is never retried; the write path must stop
// promptly when a job is torn down.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := s.retryBackoff
	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, s.retryAttempts, err)
}
