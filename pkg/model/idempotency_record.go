package model

import (
	"time"

	"github.com/jt828/token-ledger/pkg/idempotency"
)

func (dataEntity *IdempotencyRecordDataEntity) ToDomain() idempotency.Record {
	return idempotency.Record{
		TenantId:     dataEntity.TenantId,
		Id:           dataEntity.Id,
		RequestType:  dataEntity.RequestType,
		Fingerprint:  dataEntity.Fingerprint,
		ReferenceId:  dataEntity.ReferenceId,
		ResponseData: dataEntity.ResponseData,
		CreatedAt:    dataEntity.CreatedAt,
	}
}

type IdempotencyRecordDataEntity struct {
	TenantId     int64                   `gorm:"column:tenant_id"`
	Id           int64                   `gorm:"column:id"`
	RequestType  idempotency.RequestType `gorm:"column:request_type"`
	Fingerprint  string                  `gorm:"column:fingerprint"`
	ReferenceId  int64                   `gorm:"column:reference_id"`
	ResponseData string                  `gorm:"column:response_data"`
	CreatedAt    time.Time               `gorm:"column:created_at"`
}

func (dataEntity *IdempotencyRecordDataEntity) TableName() string {
	return "main.idempotency_records"
}
