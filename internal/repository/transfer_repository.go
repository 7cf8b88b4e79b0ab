package repository

import (
	"context"

	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
	"gorm.io/gorm"
)

type TransferRepository interface {
	Insert(ctx context.Context, transfer *model.Transfer) error
	List(ctx context.Context, query TransferQuery) ([]*model.Transfer, error)
}

// TransferQuery filters a tenant's transfers. AccountIdEq matches either side.
type TransferQuery struct {
	TenantIdEq  int64
	AccountIdEq int64
	TokenIdEq   string
	Limit       int
}

type TransferRepositoryImpl struct {
	db    *gorm.DB
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
}

func NewTransferRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry) TransferRepository {
	return &TransferRepositoryImpl{db: db, cb: cb, retry: retry}
}

func (r *TransferRepositoryImpl) Insert(ctx context.Context, transfer *model.Transfer) error {
	_, err := execute(ctx, r.cb, r.retry, func() (struct{}, error) {
		entity := model.TransferDataEntity(*transfer)
		return struct{}{}, r.db.WithContext(ctx).Create(&entity).Error
	})
	return storageError("insert transfer", err)
}

func (r *TransferRepositoryImpl) List(ctx context.Context, query TransferQuery) ([]*model.Transfer, error) {
	transfers, err := execute(ctx, r.cb, r.retry, func() ([]*model.Transfer, error) {
		var entities []model.TransferDataEntity
		db := r.db.WithContext(ctx).Where("tenant_id = ?", query.TenantIdEq)
		if query.AccountIdEq != 0 {
			db = db.Where("send_account_id = ? OR recv_account_id = ?", query.AccountIdEq, query.AccountIdEq)
		}
		if query.TokenIdEq != "" {
			db = db.Where("token_id = ?", query.TokenIdEq)
		}
		if query.Limit > 0 {
			db = db.Limit(query.Limit)
		}
		if err := db.Order("id DESC").Find(&entities).Error; err != nil {
			return nil, err
		}
		transfers := make([]*model.Transfer, len(entities))
		for i := range entities {
			t := entities[i].ToDomain()
			transfers[i] = &t
		}
		return transfers, nil
	})
	return transfers, storageError("list transfers", err)
}
