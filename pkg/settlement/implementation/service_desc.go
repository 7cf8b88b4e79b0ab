package implementation

import (
	"context"

	"github.com/jt828/token-ledger/pkg/settlement"
	"google.golang.org/grpc"
)

const (
	serviceName             = "settlement.v1.Broadcaster"
	getFundableUtxosMethod  = "/" + serviceName + "/GetFundableUtxos"
	buildAndBroadcastMethod = "/" + serviceName + "/BuildAndBroadcast"
)

type GetFundableUtxosRequest struct {
	TokenId string `json:"token_id"`
}

type BuildAndBroadcastResponse struct {
	Txid string `json:"txid"`
}

// BroadcasterServer is the server side of the settlement wire contract.
type BroadcasterServer interface {
	GetFundableUtxos(ctx context.Context, req *GetFundableUtxosRequest) (*settlement.UtxoSet, error)
	BuildAndBroadcast(ctx context.Context, req *settlement.BroadcastRequest) (*BuildAndBroadcastResponse, error)
}

func RegisterBroadcasterServer(s grpc.ServiceRegistrar, srv BroadcasterServer) {
	s.RegisterService(&BroadcasterServiceDesc, srv)
}

var BroadcasterServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BroadcasterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFundableUtxos", Handler: getFundableUtxosHandler},
		{MethodName: "BuildAndBroadcast", Handler: buildAndBroadcastHandler},
	},
}

func getFundableUtxosHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetFundableUtxosRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BroadcasterServer).GetFundableUtxos(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getFundableUtxosMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BroadcasterServer).GetFundableUtxos(ctx, req.(*GetFundableUtxosRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func buildAndBroadcastHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(settlement.BroadcastRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BroadcasterServer).BuildAndBroadcast(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: buildAndBroadcastMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BroadcasterServer).BuildAndBroadcast(ctx, req.(*settlement.BroadcastRequest))
	}
	return interceptor(ctx, in, info, handler)
}
