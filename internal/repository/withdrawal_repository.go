package repository

import (
	"context"
	"fmt"

	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
	"gorm.io/gorm"
)

type WithdrawalRepository interface {
	Insert(ctx context.Context, withdrawal *model.Withdrawal) error
	List(ctx context.Context, ref model.AccountRef) ([]*model.Withdrawal, error)
}

type WithdrawalRepositoryImpl struct {
	db    *gorm.DB
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
}

func NewWithdrawalRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry) WithdrawalRepository {
	return &WithdrawalRepositoryImpl{db: db, cb: cb, retry: retry}
}

// Insert fails with ErrConcurrentRequest when another request already
// recorded the same external txid. Retrying the unit replays that request.
func (r *WithdrawalRepositoryImpl) Insert(ctx context.Context, withdrawal *model.Withdrawal) error {
	_, err := execute(ctx, r.cb, r.retry, func() (struct{}, error) {
		entity := model.WithdrawalDataEntity(*withdrawal)
		err := r.db.WithContext(ctx).Create(&entity).Error
		if pgErrorCode(err) == pgUniqueViolation {
			return struct{}{}, fmt.Errorf("withdrawal txid %s: %w", withdrawal.ExternalTxid, ErrConcurrentRequest)
		}
		return struct{}{}, err
	})
	return storageError("insert withdrawal", err)
}

func (r *WithdrawalRepositoryImpl) List(ctx context.Context, ref model.AccountRef) ([]*model.Withdrawal, error) {
	withdrawals, err := execute(ctx, r.cb, r.retry, func() ([]*model.Withdrawal, error) {
		var entities []model.WithdrawalDataEntity
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND account_id = ?", ref.TenantId, ref.AccountId).
			Order("id DESC").
			Find(&entities).Error
		if err != nil {
			return nil, err
		}
		withdrawals := make([]*model.Withdrawal, len(entities))
		for i := range entities {
			w := entities[i].ToDomain()
			withdrawals[i] = &w
		}
		return withdrawals, nil
	})
	return withdrawals, storageError("list withdrawals", err)
}
