package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/events"
	"github.com/jt828/token-ledger/pkg/idempotency"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/retry"
	"github.com/jt828/token-ledger/pkg/snowflake"
	"github.com/shopspring/decimal"
)

type TransferParams struct {
	TenantId      int64
	FromAccountId int64
	ToAccountId   int64
	TokenId       string
	Amount        decimal.Decimal
}

func (p TransferParams) from() model.AccountRef {
	return model.AccountRef{TenantId: p.TenantId, AccountId: p.FromAccountId}
}

func (p TransferParams) to() model.AccountRef {
	return model.AccountRef{TenantId: p.TenantId, AccountId: p.ToAccountId}
}

func (p TransferParams) request(idempotencyId int64) idempotency.Request {
	return idempotency.Request{
		Key:  idempotency.Key{TenantId: p.TenantId, Id: idempotencyId},
		Type: idempotency.RequestTypeTransfer,
		Fingerprint: idempotency.Fingerprint(
			strconv.FormatInt(p.FromAccountId, 10),
			strconv.FormatInt(p.ToAccountId, 10),
			p.TokenId,
			p.Amount.String(),
		),
	}
}

type TransferService interface {
	Transfer(ctx context.Context, idempotencyId int64, params TransferParams) (*model.TransferResult, error)
}

type transferService struct {
	uowFactory  repository.UnitOfWorkFactory
	retry       retry.Retry
	idempotency idempotency.Idempotency
	snowflake   snowflake.Snowflake
	publisher   events.Publisher
	log         observability.Logger
	tracer      observability.Tracer
	transfers   observability.Counter
}

func NewTransferService(
	uowFactory repository.UnitOfWorkFactory,
	retry retry.Retry,
	idempotency idempotency.Idempotency,
	snowflake snowflake.Snowflake,
	publisher events.Publisher,
	obs observability.Observability,
) TransferService {
	return &transferService{
		uowFactory:  uowFactory,
		retry:       retry,
		idempotency: idempotency,
		snowflake:   snowflake,
		publisher:   publisher,
		log:         obs.Logger().With(observability.String("service", "transfer")),
		tracer:      obs.Tracer(),
		transfers: obs.Meter().Counter("ledger_transfers_total", observability.MetricOpt{
			Help:      "Internal transfers by result.",
			LabelKeys: []string{"result"},
		}),
	}
}

func (s *transferService) Transfer(ctx context.Context, idempotencyId int64, params TransferParams) (*model.TransferResult, error) {
	ctx, span := s.tracer.Start(ctx, "TransferService.Transfer")
	defer span.End()
	span.SetAttributes(
		observability.Int64("tenant_id", params.TenantId),
		observability.Int64("from_account_id", params.FromAccountId),
		observability.Int64("to_account_id", params.ToAccountId),
		observability.String("token_id", params.TokenId),
	)

	result, applied, err := s.transfer(ctx, idempotencyId, params)
	s.transfers.Inc(1, observability.Label{Key: "result", Value: resultLabel(err)})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if applied {
		s.log.Info("transfer committed",
			observability.Int64("transfer_id", result.Transfer.Id),
			observability.Stringer("from", params.from()),
			observability.Stringer("to", params.to()),
			observability.String("token_id", params.TokenId),
			observability.Stringer("amount", params.Amount),
		)
		s.publish(ctx, result)
	}
	return result, nil
}

func (s *transferService) transfer(ctx context.Context, idempotencyId int64, params TransferParams) (*model.TransferResult, bool, error) {
	if idempotencyId == 0 {
		return nil, false, fmt.Errorf("idempotency id is required: %w", apperror.ErrInvalidIdentifier)
	}
	from, to := params.from(), params.to()
	if err := validateRef(from); err != nil {
		return nil, false, err
	}
	if err := validateRef(to); err != nil {
		return nil, false, err
	}
	if !params.Amount.IsPositive() {
		return nil, false, fmt.Errorf("amount %s must be positive: %w", params.Amount, apperror.ErrInvalidAmount)
	}
	if from == to {
		return nil, false, fmt.Errorf("account %s: %w", from, apperror.ErrSelfTransfer)
	}

	transferId := s.snowflake.Generate()
	var applied bool

	result, err := runInUnitOfWork(ctx, s.uowFactory, s.retry, func(uow repository.UnitOfWork) (*model.TransferResult, error) {
		applied = false

		token, err := getToken(ctx, uow, params.TokenId)
		if err != nil {
			return nil, err
		}
		if !token.Accepts(params.Amount) {
			return nil, fmt.Errorf("%s allows %d decimal places: %w", token.Name, token.Decimals, apperror.ErrInvalidAmount)
		}

		out, err := s.idempotency.Execute(ctx, uow.IdempotencyRecordRepository(), params.request(idempotencyId), transferId,
			func() any { return &model.TransferResult{} },
			func() (any, error) {
				result, err := s.apply(ctx, uow, transferId, token, params)
				if err != nil {
					return nil, err
				}
				applied = true
				return result, nil
			})
		if err != nil {
			return nil, err
		}
		return out.(*model.TransferResult), nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

// apply moves the amount inside uow. The account that sorts first is adjusted
// first so opposite-direction transfers take row locks in the same order.
func (s *transferService) apply(ctx context.Context, uow repository.UnitOfWork, transferId int64, token *model.Token, params TransferParams) (*model.TransferResult, error) {
	from, to := params.from(), params.to()

	if err := uow.AccountRepository().Ensure(ctx, to); err != nil {
		return nil, err
	}

	type leg struct {
		ref   model.AccountRef
		delta decimal.Decimal
	}
	legs := []leg{{from, params.Amount.Neg()}, {to, params.Amount}}
	if to.Less(from) {
		legs[0], legs[1] = legs[1], legs[0]
	}

	balances := make(map[model.AccountRef]decimal.Decimal, 2)
	for _, l := range legs {
		balance, err := uow.BalanceRepository().Adjust(ctx, l.ref, token.Id, l.delta)
		if err != nil {
			if errors.Is(err, apperror.ErrInsufficientFunds) {
				return nil, insufficientFunds(ctx, uow, l.ref, token, err)
			}
			return nil, err
		}
		balances[l.ref] = balance
	}

	transfer := model.Transfer{
		Id:            transferId,
		TenantId:      params.TenantId,
		SendAccountId: params.FromAccountId,
		RecvAccountId: params.ToAccountId,
		TokenId:       token.Id,
		Amount:        params.Amount,
		CreatedAt:     time.Now().UTC(),
	}
	if err := uow.TransferRepository().Insert(ctx, &transfer); err != nil {
		return nil, err
	}

	return &model.TransferResult{
		Transfer:    transfer,
		SendBalance: balances[from],
		RecvBalance: balances[to],
	}, nil
}

func (s *transferService) publish(ctx context.Context, result *model.TransferResult) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeTransferCompleted,
		Key:        model.AccountRef{TenantId: result.Transfer.TenantId, AccountId: result.Transfer.SendAccountId}.String(),
		OccurredAt: result.Transfer.CreatedAt,
		Payload:    result,
	})
	if err != nil {
		s.log.Warn("publish transfer event failed", observability.Int64("transfer_id", result.Transfer.Id), observability.Err(err))
	}
}
