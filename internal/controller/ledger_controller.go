package controller

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/jt828/token-ledger/api/v1"
	"github.com/jt828/token-ledger/internal/service"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/shopspring/decimal"
)

var _ v1.LedgerServiceServer = (*LedgerController)(nil)

type LedgerController struct {
	balances     service.BalanceService
	transfers    service.TransferService
	deposits     service.DepositScanner
	withdrawals  service.WithdrawalCoordinator
	defaultToken string
}

func NewLedgerController(
	balances service.BalanceService,
	transfers service.TransferService,
	deposits service.DepositScanner,
	withdrawals service.WithdrawalCoordinator,
	defaultToken string,
) *LedgerController {
	return &LedgerController{
		balances:     balances,
		transfers:    transfers,
		deposits:     deposits,
		withdrawals:  withdrawals,
		defaultToken: defaultToken,
	}
}

func (ctrl *LedgerController) GetBalance(
	ctx context.Context,
	request *v1.GetBalanceRequest,
) (*v1.GetBalanceResponse, error) {
	token, err := ctrl.resolveToken(ctx, request.Token)
	if err != nil {
		return nil, err
	}
	amount, err := ctrl.balances.GetBalance(ctx, ref(request.TenantId, request.AccountId), token.Id)
	if err != nil {
		return nil, err
	}
	return &v1.GetBalanceResponse{Token: toToken(token), Amount: amount.String()}, nil
}

func (ctrl *LedgerController) GetAllBalances(
	ctx context.Context,
	request *v1.GetAllBalancesRequest,
) (*v1.GetAllBalancesResponse, error) {
	balances, err := ctrl.balances.GetAllBalances(ctx, ref(request.TenantId, request.AccountId))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(balances))
	for tokenId, amount := range balances {
		out[tokenId] = amount.String()
	}
	return &v1.GetAllBalancesResponse{Balances: out}, nil
}

func (ctrl *LedgerController) GetDepositAddress(
	ctx context.Context,
	request *v1.GetDepositAddressRequest,
) (*v1.GetDepositAddressResponse, error) {
	addr, err := ctrl.balances.DepositAddress(ctx, ref(request.TenantId, request.AccountId))
	if err != nil {
		return nil, err
	}
	return &v1.GetDepositAddressResponse{Address: addr}, nil
}

func (ctrl *LedgerController) Transfer(
	ctx context.Context,
	request *v1.TransferRequest,
) (*v1.TransferResponse, error) {
	if request.IdempotencyId <= 0 {
		return nil, fmt.Errorf("idempotency_id must be greater than 0: %w", apperror.ErrInvalidArgument)
	}
	amount, err := parseAmount(request.Amount)
	if err != nil {
		return nil, err
	}
	token, err := ctrl.resolveToken(ctx, request.Token)
	if err != nil {
		return nil, err
	}

	result, err := ctrl.transfers.Transfer(ctx, request.IdempotencyId, service.TransferParams{
		TenantId:      request.TenantId,
		FromAccountId: request.FromAccountId,
		ToAccountId:   request.ToAccountId,
		TokenId:       token.Id,
		Amount:        amount,
	})
	if err != nil {
		return nil, err
	}

	return &v1.TransferResponse{
		Transfer:    toTransfer(&result.Transfer),
		SendBalance: result.SendBalance.String(),
		RecvBalance: result.RecvBalance.String(),
	}, nil
}

func (ctrl *LedgerController) ReconcileDeposits(
	ctx context.Context,
	request *v1.ReconcileDepositsRequest,
) (*v1.ReconcileDepositsResponse, error) {
	found, err := ctrl.deposits.Reconcile(ctx, ref(request.TenantId, request.AccountId))
	if err != nil {
		return nil, err
	}
	return &v1.ReconcileDepositsResponse{Found: found}, nil
}

func (ctrl *LedgerController) Withdraw(
	ctx context.Context,
	request *v1.WithdrawRequest,
) (*v1.WithdrawResponse, error) {
	if request.IdempotencyId <= 0 {
		return nil, fmt.Errorf("idempotency_id must be greater than 0: %w", apperror.ErrInvalidArgument)
	}
	if request.DestinationAddress == "" {
		return nil, fmt.Errorf("destination_address is required: %w", apperror.ErrInvalidAddress)
	}
	amount, err := parseAmount(request.Amount)
	if err != nil {
		return nil, err
	}
	token, err := ctrl.resolveToken(ctx, request.Token)
	if err != nil {
		return nil, err
	}

	result, err := ctrl.withdrawals.Withdraw(ctx, request.IdempotencyId, service.WithdrawParams{
		TenantId:           request.TenantId,
		AccountId:          request.AccountId,
		TokenId:            token.Id,
		DestinationAddress: request.DestinationAddress,
		Amount:             amount,
	})
	if err != nil {
		return nil, err
	}

	return &v1.WithdrawResponse{
		Withdrawal: toWithdrawal(&result.Withdrawal),
		Balance:    result.Balance.String(),
	}, nil
}

func (ctrl *LedgerController) ListTransfers(
	ctx context.Context,
	request *v1.ListTransfersRequest,
) (*v1.ListTransfersResponse, error) {
	filter := service.TransferFilter{
		TenantId:  request.TenantId,
		AccountId: request.AccountId,
		Limit:     request.Limit,
	}
	if request.Token != "" {
		token, err := ctrl.resolveToken(ctx, request.Token)
		if err != nil {
			return nil, err
		}
		filter.TokenId = token.Id
	}

	transfers, err := ctrl.balances.ListTransfers(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]v1.Transfer, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, toTransfer(t))
	}
	return &v1.ListTransfersResponse{Transfers: out}, nil
}

func (ctrl *LedgerController) ListWithdrawals(
	ctx context.Context,
	request *v1.ListWithdrawalsRequest,
) (*v1.ListWithdrawalsResponse, error) {
	withdrawals, err := ctrl.balances.ListWithdrawals(ctx, ref(request.TenantId, request.AccountId))
	if err != nil {
		return nil, err
	}
	out := make([]v1.Withdrawal, 0, len(withdrawals))
	for _, w := range withdrawals {
		out = append(out, toWithdrawal(w))
	}
	return &v1.ListWithdrawalsResponse{Withdrawals: out}, nil
}

func (ctrl *LedgerController) ListTokens(
	ctx context.Context,
	request *v1.ListTokensRequest,
) (*v1.ListTokensResponse, error) {
	tokens, err := ctrl.balances.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]v1.Token, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toToken(t))
	}
	return &v1.ListTokensResponse{Tokens: out}, nil
}

func (ctrl *LedgerController) resolveToken(ctx context.Context, idOrName string) (*model.Token, error) {
	if idOrName == "" {
		idOrName = ctrl.defaultToken
	}
	return ctrl.balances.ResolveToken(ctx, idOrName)
}

func ref(tenantId, accountId int64) model.AccountRef {
	return model.AccountRef{TenantId: tenantId, AccountId: accountId}
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required: %w", apperror.ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, apperror.ErrInvalidAmount)
	}
	return amount, nil
}

func toToken(t *model.Token) v1.Token {
	return v1.Token{Id: t.Id, Name: t.Name, Decimals: t.Decimals}
}

func toTransfer(t *model.Transfer) v1.Transfer {
	return v1.Transfer{
		Id:            t.Id,
		TenantId:      t.TenantId,
		SendAccountId: t.SendAccountId,
		RecvAccountId: t.RecvAccountId,
		TokenId:       t.TokenId,
		Amount:        t.Amount.String(),
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toWithdrawal(w *model.Withdrawal) v1.Withdrawal {
	return v1.Withdrawal{
		Id:                 w.Id,
		TenantId:           w.TenantId,
		AccountId:          w.AccountId,
		ExternalTxid:       w.ExternalTxid,
		TokenId:            w.TokenId,
		Amount:             w.Amount.String(),
		DestinationAddress: w.DestinationAddress,
		CreatedAt:          w.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
