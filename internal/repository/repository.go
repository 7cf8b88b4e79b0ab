package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/retry"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// ErrConcurrentRequest is returned when another request committed the same
// idempotency id first. Retrying the unit of work replays the stored result.
var ErrConcurrentRequest = errors.New("concurrent request with the same idempotency id")

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// execute runs op under the circuit breaker and retry policy shared by every
// repository call.
func execute[T any](ctx context.Context, cb circuitbreaker.CircuitBreaker, r retry.Retry, op func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (any, error) {
		var out T
		err := r.Execute(ctx, func() error {
			var err error
			out, err = op()
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// storageError leaves business errors untouched and marks everything else as
// ErrStorage while keeping the driver error reachable.
func storageError(op string, err error) error {
	if err == nil || apperror.IsBusiness(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, apperror.ErrStorage, err)
}
