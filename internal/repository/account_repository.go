package repository

import (
	"context"
	"time"

	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
	"gorm.io/gorm"
)

type AccountRepository interface {
	// Ensure creates the account row if it does not exist yet.
	Ensure(ctx context.Context, ref model.AccountRef) error
	List(ctx context.Context) ([]model.AccountRef, error)
}

type AccountRepositoryImpl struct {
	db    *gorm.DB
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
}

func NewAccountRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry) AccountRepository {
	return &AccountRepositoryImpl{db: db, cb: cb, retry: retry}
}

func (r *AccountRepositoryImpl) Ensure(ctx context.Context, ref model.AccountRef) error {
	_, err := execute(ctx, r.cb, r.retry, func() (struct{}, error) {
		return struct{}{}, r.db.WithContext(ctx).Exec(
			`INSERT INTO main.accounts (tenant_id, account_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
			ref.TenantId, ref.AccountId, time.Now().UTC(),
		).Error
	})
	return storageError("ensure account", err)
}

func (r *AccountRepositoryImpl) List(ctx context.Context) ([]model.AccountRef, error) {
	refs, err := execute(ctx, r.cb, r.retry, func() ([]model.AccountRef, error) {
		var entities []model.AccountDataEntity
		if err := r.db.WithContext(ctx).Order("tenant_id, account_id").Find(&entities).Error; err != nil {
			return nil, err
		}
		refs := make([]model.AccountRef, len(entities))
		for i := range entities {
			refs[i] = entities[i].ToDomain().Ref()
		}
		return refs, nil
	})
	return refs, storageError("list accounts", err)
}
