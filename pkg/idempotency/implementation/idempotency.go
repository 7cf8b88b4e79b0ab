package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/idempotency"
)

type idempotencyImpl struct{}

func NewIdempotency() idempotency.Idempotency {
	return &idempotencyImpl{}
}

func (i *idempotencyImpl) Lookup(
	ctx context.Context,
	repo idempotency.RecordRepository,
	req idempotency.Request,
	newResult func() any,
) (any, bool, error) {
	record, err := repo.Get(ctx, req.Key)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, nil
	}

	if record.RequestType != "" && record.RequestType != req.Type {
		return nil, false, fmt.Errorf("idempotency key %s recorded as %s: %w", req.Key, record.RequestType, apperror.ErrIdempotencyConflict)
	}
	if record.Fingerprint != "" && record.Fingerprint != req.Fingerprint {
		return nil, false, fmt.Errorf("idempotency key %s reused with different parameters: %w", req.Key, apperror.ErrIdempotencyConflict)
	}

	result := newResult()
	if err := json.Unmarshal([]byte(record.ResponseData), result); err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (i *idempotencyImpl) Execute(
	ctx context.Context,
	repo idempotency.RecordRepository,
	req idempotency.Request,
	referenceId int64,
	newResult func() any,
	fn func() (any, error),
) (any, error) {
	cached, found, err := i.Lookup(ctx, repo, req, newResult)
	if err != nil {
		return nil, err
	}
	if found {
		return cached, nil
	}

	result, err := fn()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	err = repo.Insert(ctx, &idempotency.Record{
		TenantId:     req.Key.TenantId,
		Id:           req.Key.Id,
		RequestType:  req.Type,
		Fingerprint:  req.Fingerprint,
		ReferenceId:  referenceId,
		ResponseData: string(data),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
