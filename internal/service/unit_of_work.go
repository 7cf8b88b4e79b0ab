package service

import (
	"context"
	"fmt"

	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
)

// runInUnitOfWork runs fn inside a fresh unit of work and commits it. The whole
// unit is retried according to r, so fn must not touch anything outside the
// transaction.
func runInUnitOfWork[T any](ctx context.Context, factory repository.UnitOfWorkFactory, r retry.Retry, fn func(uow repository.UnitOfWork) (T, error)) (T, error) {
	var out T
	err := r.Execute(ctx, func() error {
		uow, err := factory.New(ctx)
		if err != nil {
			return err
		}
		result, err := fn(uow)
		if err != nil {
			_ = uow.Abort(ctx)
			return err
		}
		if err := uow.Commit(ctx); err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

func validateRef(ref model.AccountRef) error {
	if ref.TenantId <= 0 || ref.AccountId <= 0 {
		return fmt.Errorf("account %s: %w", ref, apperror.ErrInvalidIdentifier)
	}
	return nil
}

func getToken(ctx context.Context, uow repository.UnitOfWork, tokenId string) (*model.Token, error) {
	if tokenId == "" {
		return nil, fmt.Errorf("token id is required: %w", apperror.ErrInvalidArgument)
	}
	token, err := uow.TokenRepository().Get(ctx, tokenId)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("token %s: %w", tokenId, apperror.ErrNotFound)
	}
	return token, nil
}

// insufficientFunds rewrites a failed debit into a message naming what the
// account actually holds.
func insufficientFunds(ctx context.Context, uow repository.UnitOfWork, ref model.AccountRef, token *model.Token, cause error) error {
	balance, err := uow.BalanceRepository().Get(ctx, ref, token.Id)
	if err != nil {
		return cause
	}
	return insufficientFundsError(token, balance)
}
