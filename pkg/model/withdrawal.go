package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func (dataEntity *WithdrawalDataEntity) ToDomain() Withdrawal {
	return Withdrawal(*dataEntity)
}

type WithdrawalDataEntity struct {
	Id                 int64           `gorm:"column:id"`
	TenantId           int64           `gorm:"column:tenant_id"`
	AccountId          int64           `gorm:"column:account_id"`
	ExternalTxid       string          `gorm:"column:external_txid"`
	TokenId            string          `gorm:"column:token_id"`
	Amount             decimal.Decimal `gorm:"column:amount"`
	DestinationAddress string          `gorm:"column:destination_address"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
}

func (dataEntity *WithdrawalDataEntity) TableName() string {
	return "main.withdrawals"
}

type Withdrawal struct {
	Id                 int64           `json:"id"`
	TenantId           int64           `json:"tenant_id"`
	AccountId          int64           `json:"account_id"`
	ExternalTxid       string          `json:"external_txid"`
	TokenId            string          `json:"token_id"`
	Amount             decimal.Decimal `json:"amount"`
	DestinationAddress string          `json:"destination_address"`
	CreatedAt          time.Time       `json:"created_at"`
}

type WithdrawalResult struct {
	Withdrawal Withdrawal      `json:"withdrawal"`
	Balance    decimal.Decimal `json:"balance"`
}
