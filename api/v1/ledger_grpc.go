package v1

import (
	"context"

	"github.com/jt828/token-ledger/pkg/jsoncodec"
	"google.golang.org/grpc"
)

const ServiceName = "ledger.v1.LedgerService"

type LedgerServiceServer interface {
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	GetAllBalances(context.Context, *GetAllBalancesRequest) (*GetAllBalancesResponse, error)
	GetDepositAddress(context.Context, *GetDepositAddressRequest) (*GetDepositAddressResponse, error)
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	ReconcileDeposits(context.Context, *ReconcileDepositsRequest) (*ReconcileDepositsResponse, error)
	Withdraw(context.Context, *WithdrawRequest) (*WithdrawResponse, error)
	ListTransfers(context.Context, *ListTransfersRequest) (*ListTransfersResponse, error)
	ListWithdrawals(context.Context, *ListWithdrawalsRequest) (*ListWithdrawalsResponse, error)
	ListTokens(context.Context, *ListTokensRequest) (*ListTokensResponse, error)
}

func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBalance", Handler: unary("GetBalance", LedgerServiceServer.GetBalance)},
		{MethodName: "GetAllBalances", Handler: unary("GetAllBalances", LedgerServiceServer.GetAllBalances)},
		{MethodName: "GetDepositAddress", Handler: unary("GetDepositAddress", LedgerServiceServer.GetDepositAddress)},
		{MethodName: "Transfer", Handler: unary("Transfer", LedgerServiceServer.Transfer)},
		{MethodName: "ReconcileDeposits", Handler: unary("ReconcileDeposits", LedgerServiceServer.ReconcileDeposits)},
		{MethodName: "Withdraw", Handler: unary("Withdraw", LedgerServiceServer.Withdraw)},
		{MethodName: "ListTransfers", Handler: unary("ListTransfers", LedgerServiceServer.ListTransfers)},
		{MethodName: "ListWithdrawals", Handler: unary("ListWithdrawals", LedgerServiceServer.ListWithdrawals)},
		{MethodName: "ListTokens", Handler: unary("ListTokens", LedgerServiceServer.ListTokens)},
	},
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerServiceClient calls the ledger over the JSON codec.
type LedgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) *LedgerServiceClient {
	return &LedgerServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsoncodec.Name)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	return invoke[GetBalanceResponse](ctx, c.cc, "GetBalance", in, opts)
}

func (c *LedgerServiceClient) GetAllBalances(ctx context.Context, in *GetAllBalancesRequest, opts ...grpc.CallOption) (*GetAllBalancesResponse, error) {
	return invoke[GetAllBalancesResponse](ctx, c.cc, "GetAllBalances", in, opts)
}

func (c *LedgerServiceClient) GetDepositAddress(ctx context.Context, in *GetDepositAddressRequest, opts ...grpc.CallOption) (*GetDepositAddressResponse, error) {
	return invoke[GetDepositAddressResponse](ctx, c.cc, "GetDepositAddress", in, opts)
}

func (c *LedgerServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	return invoke[TransferResponse](ctx, c.cc, "Transfer", in, opts)
}

func (c *LedgerServiceClient) ReconcileDeposits(ctx context.Context, in *ReconcileDepositsRequest, opts ...grpc.CallOption) (*ReconcileDepositsResponse, error) {
	return invoke[ReconcileDepositsResponse](ctx, c.cc, "ReconcileDeposits", in, opts)
}

func (c *LedgerServiceClient) Withdraw(ctx context.Context, in *WithdrawRequest, opts ...grpc.CallOption) (*WithdrawResponse, error) {
	return invoke[WithdrawResponse](ctx, c.cc, "Withdraw", in, opts)
}

func (c *LedgerServiceClient) ListTransfers(ctx context.Context, in *ListTransfersRequest, opts ...grpc.CallOption) (*ListTransfersResponse, error) {
	return invoke[ListTransfersResponse](ctx, c.cc, "ListTransfers", in, opts)
}

func (c *LedgerServiceClient) ListWithdrawals(ctx context.Context, in *ListWithdrawalsRequest, opts ...grpc.CallOption) (*ListWithdrawalsResponse, error) {
	return invoke[ListWithdrawalsResponse](ctx, c.cc, "ListWithdrawals", in, opts)
}

func (c *LedgerServiceClient) ListTokens(ctx context.Context, in *ListTokensRequest, opts ...grpc.CallOption) (*ListTokensResponse, error) {
	return invoke[ListTokensResponse](ctx, c.cc, "ListTokens", in, opts)
}
