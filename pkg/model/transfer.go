package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func (dataEntity *TransferDataEntity) ToDomain() Transfer {
	return Transfer(*dataEntity)
}

type TransferDataEntity struct {
	Id            int64           `gorm:"column:id"`
	TenantId      int64           `gorm:"column:tenant_id"`
	SendAccountId int64           `gorm:"column:send_account_id"`
	RecvAccountId int64           `gorm:"column:recv_account_id"`
	TokenId       string          `gorm:"column:token_id"`
	Amount        decimal.Decimal `gorm:"column:amount"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (dataEntity *TransferDataEntity) TableName() string {
	return "main.transfers"
}

type Transfer struct {
	Id            int64           `json:"id"`
	TenantId      int64           `json:"tenant_id"`
	SendAccountId int64           `json:"send_account_id"`
	RecvAccountId int64           `json:"recv_account_id"`
	TokenId       string          `json:"token_id"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

type TransferResult struct {
	Transfer    Transfer        `json:"transfer"`
	SendBalance decimal.Decimal `json:"send_balance"`
	RecvBalance decimal.Decimal `json:"recv_balance"`
}
