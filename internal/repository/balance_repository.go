package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BalanceRepository interface {
	// Get returns zero when the account holds no row for the token.
	Get(ctx context.Context, ref model.AccountRef, tokenId string) (decimal.Decimal, error)
	List(ctx context.Context, ref model.AccountRef) ([]*model.Balance, error)
	// Adjust applies delta in a single statement and returns the new amount.
	// A debit that would leave the balance negative fails with
	// ErrInsufficientFunds and changes nothing.
	Adjust(ctx context.Context, ref model.AccountRef, tokenId string, delta decimal.Decimal) (decimal.Decimal, error)
}

const (
	creditBalanceSQL = `INSERT INTO main.balances AS b (tenant_id, account_id, token_id, amount, updated_at) VALUES (?, ?, ?, ?, ?) ` +
		`ON CONFLICT (tenant_id, account_id, token_id) DO UPDATE SET amount = b.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at ` +
		`RETURNING amount`
	debitBalanceSQL = `UPDATE main.balances SET amount = amount + ?, updated_at = ? ` +
		`WHERE tenant_id = ? AND account_id = ? AND token_id = ? AND amount + ? >= 0 ` +
		`RETURNING amount`
)

type BalanceRepositoryImpl struct {
	db    *gorm.DB
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
}

func NewBalanceRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry) BalanceRepository {
	return &BalanceRepositoryImpl{db: db, cb: cb, retry: retry}
}

func (r *BalanceRepositoryImpl) Get(ctx context.Context, ref model.AccountRef, tokenId string) (decimal.Decimal, error) {
	amount, err := execute(ctx, r.cb, r.retry, func() (decimal.Decimal, error) {
		var entities []model.BalanceDataEntity
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND account_id = ? AND token_id = ?", ref.TenantId, ref.AccountId, tokenId).
			Limit(1).
			Find(&entities).Error
		if err != nil {
			return decimal.Zero, err
		}
		if len(entities) == 0 {
			return decimal.Zero, nil
		}
		return entities[0].Amount, nil
	})
	return amount, storageError("get balance", err)
}

func (r *BalanceRepositoryImpl) List(ctx context.Context, ref model.AccountRef) ([]*model.Balance, error) {
	balances, err := execute(ctx, r.cb, r.retry, func() ([]*model.Balance, error) {
		var entities []model.BalanceDataEntity
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND account_id = ?", ref.TenantId, ref.AccountId).
			Order("token_id").
			Find(&entities).Error
		if err != nil {
			return nil, err
		}
		balances := make([]*model.Balance, len(entities))
		for i := range entities {
			b := entities[i].ToDomain()
			balances[i] = &b
		}
		return balances, nil
	})
	return balances, storageError("list balances", err)
}

func (r *BalanceRepositoryImpl) Adjust(ctx context.Context, ref model.AccountRef, tokenId string, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return r.Get(ctx, ref, tokenId)
	}

	amount, err := execute(ctx, r.cb, r.retry, func() (decimal.Decimal, error) {
		now := time.Now().UTC()
		var row *sql.Row
		if delta.IsPositive() {
			row = r.db.WithContext(ctx).Raw(creditBalanceSQL, ref.TenantId, ref.AccountId, tokenId, delta, now).Row()
		} else {
			row = r.db.WithContext(ctx).Raw(debitBalanceSQL, delta, now, ref.TenantId, ref.AccountId, tokenId, delta).Row()
		}

		var amount decimal.Decimal
		if err := row.Scan(&amount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return decimal.Zero, fmt.Errorf("%s %s: %w", ref, tokenId, apperror.ErrInsufficientFunds)
			}
			if pgErrorCode(err) == pgCheckViolation {
				return decimal.Zero, fmt.Errorf("%s %s: %w", ref, tokenId, apperror.ErrInsufficientFunds)
			}
			return decimal.Zero, err
		}
		return amount, nil
	})
	return amount, storageError("adjust balance", err)
}
