package v1

// Amounts travel as decimal strings so no precision is lost on the wire.

type Token struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

type Transfer struct {
	Id            int64  `json:"id"`
	TenantId      int64  `json:"tenant_id"`
	SendAccountId int64  `json:"send_account_id"`
	RecvAccountId int64  `json:"recv_account_id"`
	TokenId       string `json:"token_id"`
	Amount        string `json:"amount"`
	CreatedAt     string `json:"created_at"`
}

type Withdrawal struct {
	Id                 int64  `json:"id"`
	TenantId           int64  `json:"tenant_id"`
	AccountId          int64  `json:"account_id"`
	ExternalTxid       string `json:"external_txid"`
	TokenId            string `json:"token_id"`
	Amount             string `json:"amount"`
	DestinationAddress string `json:"destination_address"`
	CreatedAt          string `json:"created_at"`
}

// GetBalanceRequest.Token accepts a token id or name; empty selects the default token.
type GetBalanceRequest struct {
	TenantId  int64  `json:"tenant_id"`
	AccountId int64  `json:"account_id"`
	Token     string `json:"token"`
}

type GetBalanceResponse struct {
	Token  Token  `json:"token"`
	Amount string `json:"amount"`
}

type GetAllBalancesRequest struct {
	TenantId  int64 `json:"tenant_id"`
	AccountId int64 `json:"account_id"`
}

type GetAllBalancesResponse struct {
	Balances map[string]string `json:"balances"`
}

type GetDepositAddressRequest struct {
	TenantId  int64 `json:"tenant_id"`
	AccountId int64 `json:"account_id"`
}

type GetDepositAddressResponse struct {
	Address string `json:"address"`
}

type TransferRequest struct {
	IdempotencyId int64  `json:"idempotency_id"`
	TenantId      int64  `json:"tenant_id"`
	FromAccountId int64  `json:"from_account_id"`
	ToAccountId   int64  `json:"to_account_id"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
}

type TransferResponse struct {
	Transfer    Transfer `json:"transfer"`
	SendBalance string   `json:"send_balance"`
	RecvBalance string   `json:"recv_balance"`
}

type ReconcileDepositsRequest struct {
	TenantId  int64 `json:"tenant_id"`
	AccountId int64 `json:"account_id"`
}

type ReconcileDepositsResponse struct {
	Found bool `json:"found"`
}

type WithdrawRequest struct {
	IdempotencyId      int64  `json:"idempotency_id"`
	TenantId           int64  `json:"tenant_id"`
	AccountId          int64  `json:"account_id"`
	Token              string `json:"token"`
	DestinationAddress string `json:"destination_address"`
	Amount             string `json:"amount"`
}

type WithdrawResponse struct {
	Withdrawal Withdrawal `json:"withdrawal"`
	Balance    string     `json:"balance"`
}

// ListTransfersRequest.AccountId zero lists the whole tenant.
type ListTransfersRequest struct {
	TenantId  int64  `json:"tenant_id"`
	AccountId int64  `json:"account_id"`
	Token     string `json:"token"`
	Limit     int    `json:"limit"`
}

type ListTransfersResponse struct {
	Transfers []Transfer `json:"transfers"`
}

type ListWithdrawalsRequest struct {
	TenantId  int64 `json:"tenant_id"`
	AccountId int64 `json:"account_id"`
}

type ListWithdrawalsResponse struct {
	Withdrawals []Withdrawal `json:"withdrawals"`
}

type ListTokensRequest struct{}

type ListTokensResponse struct {
	Tokens []Token `json:"tokens"`
}
