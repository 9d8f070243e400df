package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrMaxRetries = errors.New("max retry attempts reached")

// Retry calls fn at most attempts times, sleeping delay between attempts. It
// sets no deadline of its own; callers that need one pass it in ctx.
func Retry[T any](ctx context.Context, logger *zap.Logger, name string, attempts int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, delay); err != nil {
				return zero, err
			}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		logger.Error("query failed", zap.String("func", name), zap.Int("retries", attempt), zap.Error(err))
	}
	if lastErr == nil {
		return zero, fmt.Errorf("%s: %w", name, ErrMaxRetries)
	}
	return zero, fmt.Errorf("%s: %w: %w", name, ErrMaxRetries, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
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
