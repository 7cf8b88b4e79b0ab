// Package indexer is the read side of the external transaction feed.
package indexer

import (
	"context"

	"github.com/shopspring/decimal"
)

type Output struct {
	Address string
	Amount  decimal.Decimal
}

type Transaction struct {
	Txid    string
	TokenId string
	Outputs []Output
	// Valid is false for transactions that do not conform to the token protocol.
	Valid bool
}

// Query selects transactions paying Address, newest first. ExcludeTxids is
// sent to the indexer verbatim and must stay small; Skip pages past results
// already returned for the same exclusion list.
type Query struct {
	Address      string
	ExcludeTxids []string
	Skip         int
	Limit        int
}

type Indexer interface {
	Query(ctx context.Context, query Query) ([]Transaction, error)
}
