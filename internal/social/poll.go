package social

import (
	"context"
	"time"
)

// Poll calls check until it reports done, sleeping interval between calls,
// at most attempts times. It returns false without error when the attempts
// run out.
func Poll(ctx context.Context, interval time.Duration, attempts int, check func(attempt int) (bool, error)) (bool, error) {
	for i := 0; i < attempts; i++ {
		if i > 0 {
			t := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return false, ctx.Err()
			case <-t.C:
			}
		}
		done, err := check(i)
		if err != nil || done {
			return done, err
		}
	}
	return false, nil
}
