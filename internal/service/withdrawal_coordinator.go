package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/address"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/events"
	"github.com/jt828/token-ledger/pkg/idempotency"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/retry"
	"github.com/jt828/token-ledger/pkg/settlement"
	"github.com/jt828/token-ledger/pkg/snowflake"
	"github.com/shopspring/decimal"
)

type WithdrawalConfig struct {
	// ChangeAddress receives the change of every send, normally the funding wallet.
	ChangeAddress string
	DustSatoshis  int64
}

type WithdrawParams struct {
	TenantId           int64
	AccountId          int64
	TokenId            string
	DestinationAddress string
	Amount             decimal.Decimal
}

func (p WithdrawParams) ref() model.AccountRef {
	return model.AccountRef{TenantId: p.TenantId, AccountId: p.AccountId}
}

func (p WithdrawParams) request(idempotencyId int64) idempotency.Request {
	return idempotency.Request{
		Key:  idempotency.Key{TenantId: p.TenantId, Id: idempotencyId},
		Type: idempotency.RequestTypeWithdraw,
		Fingerprint: idempotency.Fingerprint(
			strconv.FormatInt(p.AccountId, 10),
			p.TokenId,
			p.DestinationAddress,
			p.Amount.String(),
		),
	}
}

type WithdrawalCoordinator interface {
	// Withdraw broadcasts the send first and debits the ledger only once a
	// txid is known. Replaying an idempotency id returns the recorded result;
	// a replay after ErrUnsettledWithdrawal resubmits with the same reference
	// so the settlement side can recognise the earlier broadcast.
	Withdraw(ctx context.Context, idempotencyId int64, params WithdrawParams) (*model.WithdrawalResult, error)
}

type withdrawalCoordinator struct {
	cfg          WithdrawalConfig
	uowFactory   repository.UnitOfWorkFactory
	retry        retry.Retry
	idempotency  idempotency.Idempotency
	snowflake    snowflake.Snowflake
	codec        address.Codec
	broadcaster  settlement.Broadcaster
	publisher    events.Publisher
	log          observability.Logger
	tracer       observability.Tracer
	withdrawals  observability.Counter
	callDuration observability.Timer
}

func NewWithdrawalCoordinator(
	cfg WithdrawalConfig,
	uowFactory repository.UnitOfWorkFactory,
	retry retry.Retry,
	idempotency idempotency.Idempotency,
	snowflake snowflake.Snowflake,
	codec address.Codec,
	broadcaster settlement.Broadcaster,
	publisher events.Publisher,
	obs observability.Observability,
) WithdrawalCoordinator {
	if cfg.DustSatoshis <= 0 {
		cfg.DustSatoshis = settlement.DustSatoshis
	}
	return &withdrawalCoordinator{
		cfg:         cfg,
		uowFactory:  uowFactory,
		retry:       retry,
		idempotency: idempotency,
		snowflake:   snowflake,
		codec:       codec,
		broadcaster: broadcaster,
		publisher:   publisher,
		log:         obs.Logger().With(observability.String("service", "withdrawal")),
		tracer:      obs.Tracer(),
		withdrawals: obs.Meter().Counter("ledger_withdrawals_total", observability.MetricOpt{
			Help:      "Withdrawals by result.",
			LabelKeys: []string{"result"},
		}),
		callDuration: externalCallDuration(obs.Meter()),
	}
}

type withdrawalSnapshot struct {
	token   *model.Token
	balance decimal.Decimal
	replay  *model.WithdrawalResult
}

func (c *withdrawalCoordinator) Withdraw(ctx context.Context, idempotencyId int64, params WithdrawParams) (*model.WithdrawalResult, error) {
	ctx, span := c.tracer.Start(ctx, "WithdrawalCoordinator.Withdraw")
	defer span.End()
	span.SetAttributes(
		observability.Stringer("account", params.ref()),
		observability.String("token_id", params.TokenId),
		observability.Int64("idempotency_id", idempotencyId),
	)

	result, err := c.withdraw(ctx, idempotencyId, params)
	c.withdrawals.Inc(1, observability.Label{Key: "result", Value: resultLabel(err)})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

func (c *withdrawalCoordinator) withdraw(ctx context.Context, idempotencyId int64, params WithdrawParams) (*model.WithdrawalResult, error) {
	ref := params.ref()
	if idempotencyId == 0 {
		return nil, fmt.Errorf("idempotency id is required: %w", apperror.ErrInvalidIdentifier)
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("amount %s must be positive: %w", params.Amount, apperror.ErrInvalidAmount)
	}
	if err := c.codec.Validate(params.DestinationAddress); err != nil {
		return nil, err
	}
	req := params.request(idempotencyId)

	snap, err := runInUnitOfWork(ctx, c.uowFactory, c.retry, func(uow repository.UnitOfWork) (*withdrawalSnapshot, error) {
		cached, found, err := c.idempotency.Lookup(ctx, uow.IdempotencyRecordRepository(), req,
			func() any { return &model.WithdrawalResult{} })
		if err != nil {
			return nil, err
		}
		if found {
			return &withdrawalSnapshot{replay: cached.(*model.WithdrawalResult)}, nil
		}

		token, err := getToken(ctx, uow, params.TokenId)
		if err != nil {
			return nil, err
		}
		balance, err := uow.BalanceRepository().Get(ctx, ref, token.Id)
		if err != nil {
			return nil, err
		}
		return &withdrawalSnapshot{token: token, balance: balance}, nil
	})
	if err != nil {
		return nil, err
	}
	if snap.replay != nil {
		return snap.replay, nil
	}

	token := snap.token
	units, ok := token.ToUnits(params.Amount)
	if !ok {
		return nil, fmt.Errorf("%s allows %d decimal places: %w", token.Name, token.Decimals, apperror.ErrInvalidAmount)
	}
	if snap.balance.LessThan(params.Amount) {
		return nil, insufficientFundsError(token, snap.balance)
	}

	txid, err := c.broadcast(ctx, req.Key.String(), token, units, params.DestinationAddress)
	if err != nil {
		return nil, err
	}

	result, err := c.debit(ctx, req, token, txid, params)
	if err != nil {
		c.log.Error("withdrawal broadcast but ledger not debited",
			observability.Int64("idempotency_id", idempotencyId),
			observability.String("txid", txid),
			observability.Stringer("account", ref),
			observability.String("token_id", token.Id),
			observability.Stringer("amount", params.Amount),
			observability.Err(err),
		)
		return nil, fmt.Errorf("txid %s (%v): %w", txid, err, apperror.ErrUnsettledWithdrawal)
	}

	c.log.Info("withdrawal settled",
		observability.Int64("withdrawal_id", result.Withdrawal.Id),
		observability.String("txid", txid),
		observability.Stringer("account", ref),
		observability.Stringer("amount", params.Amount),
	)
	if err := c.publisher.Publish(ctx, events.Event{
		Type:       events.TypeWithdrawalSettled,
		Key:        ref.String(),
		OccurredAt: result.Withdrawal.CreatedAt,
		Payload:    result,
	}); err != nil {
		c.log.Warn("publish withdrawal event failed", observability.String("txid", txid), observability.Err(err))
	}
	return result, nil
}

// broadcast checks the reserve can cover the send and hands it to the
// settlement collaborator. No ledger state is touched here.
func (c *withdrawalCoordinator) broadcast(ctx context.Context, reference string, token *model.Token, units decimal.Decimal, destination string) (string, error) {
	stop := observeDuration(c.callDuration, "settlement", "get_fundable_utxos")
	utxos, err := c.broadcaster.GetFundableUtxos(ctx, token.Id)
	stop()
	if err != nil {
		return "", fmt.Errorf("read reserve: %w: %w", apperror.ErrSettlementFailed, err)
	}
	if reserve := utxos.TokenUnits(); reserve.LessThan(units) {
		return "", fmt.Errorf("reserve holds %s of %s units of %s: %w", reserve, units, token.Name, apperror.ErrSettlementFailed)
	}

	stop = observeDuration(c.callDuration, "settlement", "build_and_broadcast")
	txid, err := c.broadcaster.BuildAndBroadcast(ctx, settlement.BroadcastRequest{
		Reference:     reference,
		TokenId:       token.Id,
		AmountUnits:   units,
		Destination:   destination,
		ChangeAddress: c.cfg.ChangeAddress,
		DustSatoshis:  c.cfg.DustSatoshis,
	})
	stop()
	if err != nil {
		return "", fmt.Errorf("broadcast: %w: %w", apperror.ErrSettlementFailed, err)
	}
	return txid, nil
}

func (c *withdrawalCoordinator) debit(ctx context.Context, req idempotency.Request, token *model.Token, txid string, params WithdrawParams) (*model.WithdrawalResult, error) {
	ref := params.ref()
	withdrawalId := c.snowflake.Generate()

	return runInUnitOfWork(ctx, c.uowFactory, c.retry, func(uow repository.UnitOfWork) (*model.WithdrawalResult, error) {
		out, err := c.idempotency.Execute(ctx, uow.IdempotencyRecordRepository(), req, withdrawalId,
			func() any { return &model.WithdrawalResult{} },
			func() (any, error) {
				balance, err := uow.BalanceRepository().Adjust(ctx, ref, token.Id, params.Amount.Neg())
				if err != nil {
					if errors.Is(err, apperror.ErrInsufficientFunds) {
						return nil, insufficientFunds(ctx, uow, ref, token, err)
					}
					return nil, err
				}
				withdrawal := model.Withdrawal{
					Id:                 withdrawalId,
					TenantId:           ref.TenantId,
					AccountId:          ref.AccountId,
					ExternalTxid:       txid,
					TokenId:            token.Id,
					Amount:             params.Amount,
					DestinationAddress: params.DestinationAddress,
					CreatedAt:          time.Now().UTC(),
				}
				if err := uow.WithdrawalRepository().Insert(ctx, &withdrawal); err != nil {
					return nil, err
				}
				return &model.WithdrawalResult{Withdrawal: withdrawal, Balance: balance}, nil
			})
		if err != nil {
			return nil, err
		}
		return out.(*model.WithdrawalResult), nil
	})
}
