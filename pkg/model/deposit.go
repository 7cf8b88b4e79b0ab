package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func (dataEntity *DepositDataEntity) ToDomain() Deposit {
	return Deposit(*dataEntity)
}

type DepositDataEntity struct {
	Id           int64           `gorm:"column:id"`
	TenantId     int64           `gorm:"column:tenant_id"`
	AccountId    int64           `gorm:"column:account_id"`
	ExternalTxid string          `gorm:"column:external_txid"`
	TokenId      string          `gorm:"column:token_id"`
	Amount       decimal.Decimal `gorm:"column:amount"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (dataEntity *DepositDataEntity) TableName() string {
	return "main.deposits"
}

type Deposit struct {
	Id           int64           `json:"id"`
	TenantId     int64           `json:"tenant_id"`
	AccountId    int64           `json:"account_id"`
	ExternalTxid string          `json:"external_txid"`
	TokenId      string          `json:"token_id"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}
