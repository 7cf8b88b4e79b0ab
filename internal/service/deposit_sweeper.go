package service

import (
	"context"
	"time"

	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/retry"
)

// DepositSweeper periodically reconciles every account the ledger knows about.
type DepositSweeper struct {
	uowFactory  repository.UnitOfWorkFactory
	retry       retry.Retry
	scanner     DepositScanner
	concurrency int
	log         observability.Logger
	accounts    observability.Gauge
}

func NewDepositSweeper(uowFactory repository.UnitOfWorkFactory, retry retry.Retry, scanner DepositScanner, concurrency int, obs observability.Observability) *DepositSweeper {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &DepositSweeper{
		uowFactory:  uowFactory,
		retry:       retry,
		scanner:     scanner,
		concurrency: concurrency,
		log:         obs.Logger().With(observability.String("service", "deposit_sweeper")),
		accounts: obs.Meter().Gauge("ledger_sweep_accounts", observability.MetricOpt{
			Help: "Accounts covered by the most recent deposit sweep.",
		}),
	}
}

// SweepOnce returns how many accounts received new deposits.
func (s *DepositSweeper) SweepOnce(ctx context.Context) (int, error) {
	refs, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) ([]model.AccountRef, error) {
		return uow.AccountRepository().List(ctx)
	})
	if err != nil {
		return 0, err
	}
	s.accounts.Set(float64(len(refs)))
	return s.scanner.ReconcileMany(ctx, refs, s.concurrency)
}

// Run sweeps every interval until ctx is done. Failures are logged and the
// next tick tries again.
func (s *DepositSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			credited, err := s.SweepOnce(ctx)
			if err != nil && ctx.Err() == nil {
				s.log.Warn("deposit sweep incomplete", observability.Int("credited_accounts", credited), observability.Err(err))
				continue
			}
			if credited > 0 {
				s.log.Info("deposit sweep credited accounts", observability.Int("credited_accounts", credited))
			}
		}
	}
}
