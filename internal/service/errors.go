package service

import (
	"errors"
	"fmt"

	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/shopspring/decimal"
)

func insufficientFundsError(token *model.Token, balance decimal.Decimal) error {
	if !balance.IsPositive() {
		return fmt.Errorf("you don't have any %s: %w", token.Name, apperror.ErrInsufficientFunds)
	}
	return fmt.Errorf("you only have %s %s: %w", balance.String(), token.Name, apperror.ErrInsufficientFunds)
}

// resultLabel buckets an operation outcome for the *_total counters.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, apperror.ErrInvalidArgument), errors.Is(err, apperror.ErrNotFound):
		return "rejected"
	case errors.Is(err, apperror.ErrSettlementFailed):
		return "settlement_failed"
	case errors.Is(err, apperror.ErrUnsettledWithdrawal):
		return "unsettled"
	default:
		return "error"
	}
}
