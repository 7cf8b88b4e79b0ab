package model

import (
	"fmt"
	"time"
)

// AccountRef identifies one ledger participant inside one tenant.
type AccountRef struct {
	TenantId  int64 `json:"tenant_id"`
	AccountId int64 `json:"account_id"`
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%d/%d", r.TenantId, r.AccountId)
}

// Less orders references by tenant then account. Transfers adjust the lower
// reference first so opposite-direction transfers lock rows in the same order.
func (r AccountRef) Less(other AccountRef) bool {
	if r.TenantId != other.TenantId {
		return r.TenantId < other.TenantId
	}
	return r.AccountId < other.AccountId
}

func (dataEntity *AccountDataEntity) ToDomain() Account {
	return Account(*dataEntity)
}

type AccountDataEntity struct {
	TenantId  int64     `gorm:"column:tenant_id;primaryKey"`
	AccountId int64     `gorm:"column:account_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (dataEntity *AccountDataEntity) TableName() string {
	return "main.accounts"
}

type Account struct {
	TenantId  int64
	AccountId int64
	CreatedAt time.Time
}

func (a Account) Ref() AccountRef {
	return AccountRef{TenantId: a.TenantId, AccountId: a.AccountId}
}
