package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

// TimeoutError reports an operation that outlived its limit. It matches both
// apperrors.ErrTimeout and context.DeadlineExceeded under errors.Is.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: exceeded %v limit", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{apperrors.ErrTimeout, context.DeadlineExceeded}
}

// WithTimeout runs op under a deadline of limit. A non-positive limit runs
// op directly. When the deadline fires first WithTimeout returns a
// *TimeoutError without waiting for op; op still observes the cancelled
// context and is expected to return promptly.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(opCtx) }()

	select {
	case err := <-result:
		if err != nil && opCtx.Err() != nil && ctx.Err() == nil {
			return &TimeoutError{Op: op, Limit: limit}
		}
		return err
	case <-opCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: cancelled: %w", op, err)
	}
	return &TimeoutError{Op: op, Limit: limit}
}
