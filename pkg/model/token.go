package model

import "github.com/shopspring/decimal"

func (dataEntity *TokenDataEntity) ToDomain() Token {
	return Token(*dataEntity)
}

type TokenDataEntity struct {
	Id       string `gorm:"column:id;primaryKey"`
	Name     string `gorm:"column:name"`
	Decimals int32  `gorm:"column:decimals"`
}

func (dataEntity *TokenDataEntity) TableName() string {
	return "main.tokens"
}

type Token struct {
	Id       string
	Name     string
	Decimals int32
}

// ToUnits converts a ledger amount into on-chain integer units. ok is false when
// the amount carries more fractional digits than the token supports.
func (t Token) ToUnits(amount decimal.Decimal) (units decimal.Decimal, ok bool) {
	units = amount.Shift(t.Decimals)
	return units, units.Equal(units.Truncate(0))
}

// Accepts reports whether amount is representable with the token's decimals.
func (t Token) Accepts(amount decimal.Decimal) bool {
	_, ok := t.ToUnits(amount)
	return ok
}
