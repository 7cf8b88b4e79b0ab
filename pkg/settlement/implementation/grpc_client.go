package implementation

import (
	"context"
	"fmt"
	"time"

	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/jsoncodec"
	"github.com/jt828/token-ledger/pkg/retry"
	"github.com/jt828/token-ledger/pkg/settlement"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type grpcBroadcaster struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	cb      circuitbreaker.CircuitBreaker
	retry   retry.Retry
}

// NewGrpcBroadcaster returns a settlement client over conn. Reads go through
// retry; BuildAndBroadcast is attempted once per call since a lost response
// may still mean the send went out.
func NewGrpcBroadcaster(conn grpc.ClientConnInterface, timeout time.Duration, cb circuitbreaker.CircuitBreaker, retry retry.Retry) settlement.Broadcaster {
	return &grpcBroadcaster{
		conn:    conn,
		timeout: timeout,
		cb:      cb,
		retry:   retry,
	}
}

// IsRetryable retries transient transport codes only.
func IsRetryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func (b *grpcBroadcaster) GetFundableUtxos(ctx context.Context, tokenId string) (*settlement.UtxoSet, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	result, err := b.cb.Execute(func() (any, error) {
		out := new(settlement.UtxoSet)
		err := b.retry.Execute(ctx, func() error {
			return b.conn.Invoke(ctx, getFundableUtxosMethod, &GetFundableUtxosRequest{TokenId: tokenId}, out,
				grpc.CallContentSubtype(jsoncodec.Name))
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get fundable utxos for %s: %w: %w", tokenId, apperror.ErrExternalService, err)
	}
	return result.(*settlement.UtxoSet), nil
}

func (b *grpcBroadcaster) BuildAndBroadcast(ctx context.Context, req settlement.BroadcastRequest) (string, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	result, err := b.cb.Execute(func() (any, error) {
		out := new(BuildAndBroadcastResponse)
		if err := b.conn.Invoke(ctx, buildAndBroadcastMethod, &req, out, grpc.CallContentSubtype(jsoncodec.Name)); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return "", fmt.Errorf("broadcast %s: %w: %w", req.Reference, apperror.ErrExternalService, err)
	}
	txid := result.(*BuildAndBroadcastResponse).Txid
	if txid == "" {
		return "", fmt.Errorf("broadcast %s: %w: empty txid", req.Reference, apperror.ErrExternalService)
	}
	return txid, nil
}

func (b *grpcBroadcaster) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}
