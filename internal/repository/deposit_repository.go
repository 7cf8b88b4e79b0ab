package repository

import (
	"context"
	"fmt"

	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
	"gorm.io/gorm"
)

type DepositRepository interface {
	// Insert fails with ErrDuplicateDeposit when the account already has a
	// deposit for the same external txid and token.
	Insert(ctx context.Context, deposit *model.Deposit) error
	// ListTxids returns every external txid ever credited to the account,
	// oldest first.
	ListTxids(ctx context.Context, ref model.AccountRef) ([]string, error)
}

type DepositRepositoryImpl struct {
	db    *gorm.DB
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
}

func NewDepositRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry) DepositRepository {
	return &DepositRepositoryImpl{db: db, cb: cb, retry: retry}
}

func (r *DepositRepositoryImpl) Insert(ctx context.Context, deposit *model.Deposit) error {
	_, err := execute(ctx, r.cb, r.retry, func() (struct{}, error) {
		entity := model.DepositDataEntity(*deposit)
		err := r.db.WithContext(ctx).Create(&entity).Error
		if pgErrorCode(err) == pgUniqueViolation {
			return struct{}{}, fmt.Errorf("txid %s for %d/%d: %w", deposit.ExternalTxid, deposit.TenantId, deposit.AccountId, apperror.ErrDuplicateDeposit)
		}
		return struct{}{}, err
	})
	return storageError("insert deposit", err)
}

func (r *DepositRepositoryImpl) ListTxids(ctx context.Context, ref model.AccountRef) ([]string, error) {
	txids, err := execute(ctx, r.cb, r.retry, func() ([]string, error) {
		var txids []string
		err := r.db.WithContext(ctx).
			Model(&model.DepositDataEntity{}).
			Where("tenant_id = ? AND account_id = ?", ref.TenantId, ref.AccountId).
			Group("external_txid").
			Order("MAX(id)").
			Pluck("external_txid", &txids).Error
		if err != nil {
			return nil, err
		}
		return txids, nil
	})
	return txids, storageError("list deposit txids", err)
}
