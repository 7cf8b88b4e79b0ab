package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/address"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/events"
	"github.com/jt828/token-ledger/pkg/indexer"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/retry"
	"github.com/jt828/token-ledger/pkg/snowflake"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type DepositScannerConfig struct {
	PageSize int
	MaxPages int
	// ExcludeWindow caps how many known txids are sent to the indexer.
	// The rest are filtered locally.
	ExcludeWindow int
}

const defaultExcludeWindow = 32

type DepositScanner interface {
	// Reconcile credits every new indexer transaction paying the account's
	// deposit address and reports whether anything was credited.
	Reconcile(ctx context.Context, ref model.AccountRef) (bool, error)
	// ReconcileMany reconciles refs with at most concurrency in flight and
	// returns how many accounts received new deposits.
	ReconcileMany(ctx context.Context, refs []model.AccountRef, concurrency int) (int, error)
}

type depositScanner struct {
	cfg          DepositScannerConfig
	uowFactory   repository.UnitOfWorkFactory
	retry        retry.Retry
	deriver      address.Deriver
	indexer      indexer.Indexer
	snowflake    snowflake.Snowflake
	publisher    events.Publisher
	log          observability.Logger
	tracer       observability.Tracer
	credited     observability.Counter
	callDuration observability.Timer
}

func NewDepositScanner(
	cfg DepositScannerConfig,
	uowFactory repository.UnitOfWorkFactory,
	retry retry.Retry,
	deriver address.Deriver,
	idx indexer.Indexer,
	snowflake snowflake.Snowflake,
	publisher events.Publisher,
	obs observability.Observability,
) DepositScanner {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.ExcludeWindow <= 0 {
		cfg.ExcludeWindow = defaultExcludeWindow
	}
	return &depositScanner{
		cfg:        cfg,
		uowFactory: uowFactory,
		retry:      retry,
		deriver:    deriver,
		indexer:    idx,
		snowflake:  snowflake,
		publisher:  publisher,
		log:        obs.Logger().With(observability.String("service", "deposit_scanner")),
		tracer:     obs.Tracer(),
		credited: obs.Meter().Counter("ledger_deposits_credited_total", observability.MetricOpt{
			Help:      "Deposits credited to the ledger by token.",
			LabelKeys: []string{"token"},
		}),
		callDuration: externalCallDuration(obs.Meter()),
	}
}

type scanState struct {
	known  []string
	tokens map[string]*model.Token
}

func (s *depositScanner) Reconcile(ctx context.Context, ref model.AccountRef) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "DepositScanner.Reconcile")
	defer span.End()
	span.SetAttributes(observability.Stringer("account", ref))

	found, err := s.reconcile(ctx, ref)
	span.SetAttributes(observability.Bool("found", found))
	if err != nil {
		span.RecordError(err)
	}
	return found, err
}

func (s *depositScanner) reconcile(ctx context.Context, ref model.AccountRef) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}

	addr, err := s.deriver.Derive(ref.TenantId, ref.AccountId)
	if err != nil {
		return false, err
	}

	state, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) (*scanState, error) {
		known, err := uow.DepositRepository().ListTxids(ctx, ref)
		if err != nil {
			return nil, err
		}
		tokens, err := uow.TokenRepository().List(ctx)
		if err != nil {
			return nil, err
		}
		state := &scanState{known: known, tokens: make(map[string]*model.Token, len(tokens))}
		for _, t := range tokens {
			state.tokens[t.Id] = t
		}
		return state, nil
	})
	if err != nil {
		return false, err
	}

	seen := make(map[string]struct{}, len(state.known))
	for _, txid := range state.known {
		seen[txid] = struct{}{}
	}
	exclude := state.known
	if len(exclude) > s.cfg.ExcludeWindow {
		exclude = exclude[len(exclude)-s.cfg.ExcludeWindow:]
	}

	var found bool
	for page := 0; page < s.cfg.MaxPages; page++ {
		stop := observeDuration(s.callDuration, "indexer", "query")
		txs, err := s.indexer.Query(ctx, indexer.Query{
			Address:      addr,
			ExcludeTxids: exclude,
			Skip:         page * s.cfg.PageSize,
			Limit:        s.cfg.PageSize,
		})
		stop()
		if err != nil {
			return found, err
		}

		for _, tx := range txs {
			if _, ok := seen[tx.Txid]; ok {
				continue
			}
			seen[tx.Txid] = struct{}{}

			credited, err := s.creditTransaction(ctx, ref, addr, tx, state.tokens)
			if err != nil {
				return found, err
			}
			found = found || credited
		}

		if len(txs) < s.cfg.PageSize {
			break
		}
	}
	return found, nil
}

// creditTransaction sums the outputs paying addr and books them as one
// deposit. Invalid transactions and unknown tokens are skipped.
func (s *depositScanner) creditTransaction(ctx context.Context, ref model.AccountRef, addr string, tx indexer.Transaction, tokens map[string]*model.Token) (bool, error) {
	if !tx.Valid {
		return false, nil
	}
	token, ok := tokens[tx.TokenId]
	if !ok {
		s.log.Debug("skipping deposit of unknown token", observability.String("txid", tx.Txid), observability.String("token_id", tx.TokenId))
		return false, nil
	}

	sum := decimal.Zero
	for _, out := range tx.Outputs {
		if out.Address == addr {
			sum = sum.Add(out.Amount)
		}
	}
	if !sum.IsPositive() {
		return false, nil
	}

	deposit := &model.Deposit{
		Id:           s.snowflake.Generate(),
		TenantId:     ref.TenantId,
		AccountId:    ref.AccountId,
		ExternalTxid: tx.Txid,
		TokenId:      token.Id,
		Amount:       sum,
	}

	balance, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) (decimal.Decimal, error) {
		deposit.CreatedAt = time.Now().UTC()
		if err := uow.AccountRepository().Ensure(ctx, ref); err != nil {
			return decimal.Zero, err
		}
		balance, err := uow.BalanceRepository().Adjust(ctx, ref, token.Id, sum)
		if err != nil {
			return decimal.Zero, err
		}
		if err := uow.DepositRepository().Insert(ctx, deposit); err != nil {
			return decimal.Zero, err
		}
		return balance, nil
	})
	if errors.Is(err, apperror.ErrDuplicateDeposit) {
		s.log.Debug("deposit already credited", observability.String("txid", tx.Txid), observability.Stringer("account", ref))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.credited.Inc(1, observability.Label{Key: "token", Value: token.Name})
	s.log.Info("deposit credited",
		observability.Stringer("account", ref),
		observability.String("txid", tx.Txid),
		observability.String("token_id", token.Id),
		observability.Stringer("amount", sum),
		observability.Stringer("balance", balance),
	)
	if err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeDepositCredited,
		Key:        ref.String(),
		OccurredAt: deposit.CreatedAt,
		Payload:    deposit,
	}); err != nil {
		s.log.Warn("publish deposit event failed", observability.String("txid", tx.Txid), observability.Err(err))
	}
	return true, nil
}

func (s *depositScanner) ReconcileMany(ctx context.Context, refs []model.AccountRef, concurrency int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "DepositScanner.ReconcileMany")
	defer span.End()

	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		g     errgroup.Group
		found atomic.Int64
		mu    sync.Mutex
		errs  []error
	)
	g.SetLimit(concurrency)

	for _, ref := range refs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ok, err := s.Reconcile(ctx, ref)
			if ok {
				found.Add(1)
			}
			if err != nil {
				s.log.Warn("reconcile failed", observability.Stringer("account", ref), observability.Err(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(err, ctxErr)
	}
	if err != nil {
		span.RecordError(err)
	}
	return int(found.Load()), err
}
