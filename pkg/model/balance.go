package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func (dataEntity *BalanceDataEntity) ToDomain() Balance {
	return Balance(*dataEntity)
}

type BalanceDataEntity struct {
	TenantId  int64           `gorm:"column:tenant_id;primaryKey"`
	AccountId int64           `gorm:"column:account_id;primaryKey"`
	TokenId   string          `gorm:"column:token_id;primaryKey"`
	Amount    decimal.Decimal `gorm:"column:amount"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (dataEntity *BalanceDataEntity) TableName() string {
	return "main.balances"
}

type Balance struct {
	TenantId  int64
	AccountId int64
	TokenId   string
	Amount    decimal.Decimal
	UpdatedAt time.Time
}
