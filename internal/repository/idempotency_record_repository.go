package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/idempotency"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
	"gorm.io/gorm"
)

type IdempotencyRecordRepositoryImpl struct {
	db    *gorm.DB
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
}

func NewIdempotencyRecordRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry) idempotency.RecordRepository {
	return &IdempotencyRecordRepositoryImpl{db: db, cb: cb, retry: retry}
}

// Get returns nil when the tenant has no record under key.
func (r *IdempotencyRecordRepositoryImpl) Get(ctx context.Context, key idempotency.Key) (*idempotency.Record, error) {
	record, err := execute(ctx, r.cb, r.retry, func() (*idempotency.Record, error) {
		var entity model.IdempotencyRecordDataEntity
		if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", key.TenantId, key.Id).Take(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		domain := entity.ToDomain()
		return &domain, nil
	})
	return record, storageError("get idempotency record", err)
}

func (r *IdempotencyRecordRepositoryImpl) Insert(ctx context.Context, record *idempotency.Record) error {
	_, err := execute(ctx, r.cb, r.retry, func() (struct{}, error) {
		entity := model.IdempotencyRecordDataEntity{
			TenantId:     record.TenantId,
			Id:           record.Id,
			RequestType:  record.RequestType,
			Fingerprint:  record.Fingerprint,
			ReferenceId:  record.ReferenceId,
			ResponseData: record.ResponseData,
			CreatedAt:    record.CreatedAt,
		}
		err := r.db.WithContext(ctx).Create(&entity).Error
		if pgErrorCode(err) == pgUniqueViolation {
			return struct{}{}, fmt.Errorf("idempotency key %s: %w", record.Key(), ErrConcurrentRequest)
		}
		return struct{}{}, err
	})
	return storageError("insert idempotency record", err)
}
