package implementation

import (
	"context"

	"github.com/jt828/token-ledger/pkg/retry"
	goretry "github.com/sethvargo/go-retry"
)

type goRetry struct {
	maxRetries  uint64
	cfg         *retry.Config
	retryableFn func(err error) bool
}

func NewRetry(maxRetries uint64, opts ...retry.Option) retry.Retry {
	cfg := retry.ApplyOptions(opts...)

	return &goRetry{
		maxRetries:  maxRetries,
		cfg:         cfg,
		retryableFn: cfg.RetryableFn,
	}
}

// backoff builds a fresh policy per call; go-retry backoffs keep attempt state.
func (r *goRetry) backoff() goretry.Backoff {
	b := goretry.NewExponential(r.cfg.Interval)
	if r.cfg.MaxInterval > 0 {
		b = goretry.WithCappedDuration(r.cfg.MaxInterval, b)
	}
	return goretry.WithMaxRetries(r.maxRetries, b)
}

func (r *goRetry) Execute(ctx context.Context, fn func() error) error {
	return goretry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if r.retryableFn != nil && !r.retryableFn(err) {
			return err
		}

		return goretry.RetryableError(err)
	})
}
