package service

import (
	"context"
	"fmt"

	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/address"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/retry"
	"github.com/shopspring/decimal"
)

type TransferFilter struct {
	TenantId  int64
	AccountId int64
	TokenId   string
	Limit     int
}

// BalanceService serves the read side of the ledger.
type BalanceService interface {
	GetBalance(ctx context.Context, ref model.AccountRef, tokenId string) (decimal.Decimal, error)
	GetAllBalances(ctx context.Context, ref model.AccountRef) (map[string]decimal.Decimal, error)
	DepositAddress(ctx context.Context, ref model.AccountRef) (string, error)
	ListTransfers(ctx context.Context, filter TransferFilter) ([]*model.Transfer, error)
	ListWithdrawals(ctx context.Context, ref model.AccountRef) ([]*model.Withdrawal, error)
	// ResolveToken finds a token by id, falling back to a case-insensitive name match.
	ResolveToken(ctx context.Context, idOrName string) (*model.Token, error)
	ListTokens(ctx context.Context) ([]*model.Token, error)
}

type balanceService struct {
	uowFactory repository.UnitOfWorkFactory
	retry      retry.Retry
	deriver    address.Deriver
	tracer     observability.Tracer
}

func NewBalanceService(uowFactory repository.UnitOfWorkFactory, retry retry.Retry, deriver address.Deriver, obs observability.Observability) BalanceService {
	return &balanceService{
		uowFactory: uowFactory,
		retry:      retry,
		deriver:    deriver,
		tracer:     obs.Tracer(),
	}
}

func (s *balanceService) GetBalance(ctx context.Context, ref model.AccountRef, tokenId string) (decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "BalanceService.GetBalance")
	defer span.End()

	if err := validateRef(ref); err != nil {
		return decimal.Zero, err
	}

	amount, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) (decimal.Decimal, error) {
		if _, err := getToken(ctx, uow, tokenId); err != nil {
			return decimal.Zero, err
		}
		return uow.BalanceRepository().Get(ctx, ref, tokenId)
	})
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}
	return amount, nil
}

func (s *balanceService) GetAllBalances(ctx context.Context, ref model.AccountRef) (map[string]decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "BalanceService.GetAllBalances")
	defer span.End()

	if err := validateRef(ref); err != nil {
		return nil, err
	}

	balances, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) ([]*model.Balance, error) {
		return uow.BalanceRepository().List(ctx, ref)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		out[b.TokenId] = b.Amount
	}
	return out, nil
}

func (s *balanceService) DepositAddress(ctx context.Context, ref model.AccountRef) (string, error) {
	if err := validateRef(ref); err != nil {
		return "", err
	}
	return s.deriver.Derive(ref.TenantId, ref.AccountId)
}

func (s *balanceService) ListTransfers(ctx context.Context, filter TransferFilter) ([]*model.Transfer, error) {
	ctx, span := s.tracer.Start(ctx, "BalanceService.ListTransfers")
	defer span.End()

	if filter.TenantId <= 0 || filter.AccountId < 0 {
		return nil, fmt.Errorf("tenant %d account %d: %w", filter.TenantId, filter.AccountId, apperror.ErrInvalidIdentifier)
	}

	transfers, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) ([]*model.Transfer, error) {
		return uow.TransferRepository().List(ctx, repository.TransferQuery{
			TenantIdEq:  filter.TenantId,
			AccountIdEq: filter.AccountId,
			TokenIdEq:   filter.TokenId,
			Limit:       filter.Limit,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return transfers, nil
}

func (s *balanceService) ListWithdrawals(ctx context.Context, ref model.AccountRef) ([]*model.Withdrawal, error) {
	ctx, span := s.tracer.Start(ctx, "BalanceService.ListWithdrawals")
	defer span.End()

	if err := validateRef(ref); err != nil {
		return nil, err
	}

	withdrawals, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) ([]*model.Withdrawal, error) {
		return uow.WithdrawalRepository().List(ctx, ref)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return withdrawals, nil
}

func (s *balanceService) ResolveToken(ctx context.Context, idOrName string) (*model.Token, error) {
	if idOrName == "" {
		return nil, fmt.Errorf("token is required: %w", apperror.ErrInvalidArgument)
	}

	return runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) (*model.Token, error) {
		token, err := uow.TokenRepository().Get(ctx, idOrName)
		if err != nil || token != nil {
			return token, err
		}
		token, err = uow.TokenRepository().GetByName(ctx, idOrName)
		if err != nil {
			return nil, err
		}
		if token == nil {
			return nil, fmt.Errorf("token %s: %w", idOrName, apperror.ErrNotFound)
		}
		return token, nil
	})
}

func (s *balanceService) ListTokens(ctx context.Context) ([]*model.Token, error) {
	return runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) ([]*model.Token, error) {
		return uow.TokenRepository().List(ctx)
	})
}
