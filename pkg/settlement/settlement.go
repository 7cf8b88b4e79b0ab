// Package settlement talks to the on-chain settlement collaborator that holds
// the funding wallet and builds, signs and broadcasts token sends.
package settlement

import (
	"context"

	"github.com/shopspring/decimal"
)

// DustSatoshis is the minimum native-coin value attached to a token output.
const DustSatoshis int64 = 1000

type Utxo struct {
	Txid       string          `json:"txid"`
	Vout       uint32          `json:"vout"`
	Satoshis   int64           `json:"satoshis"`
	TokenUnits decimal.Decimal `json:"token_units"`
}

type UtxoSet struct {
	TokenId       string `json:"token_id"`
	TokenUtxos    []Utxo `json:"token_utxos"`
	NonTokenUtxos []Utxo `json:"non_token_utxos"`
}

func (s *UtxoSet) TokenUnits() decimal.Decimal {
	total := decimal.Zero
	for _, u := range s.TokenUtxos {
		total = total.Add(u.TokenUnits)
	}
	return total
}

func (s *UtxoSet) Satoshis() int64 {
	var total int64
	for _, u := range s.NonTokenUtxos {
		total += u.Satoshis
	}
	return total
}

type BroadcastRequest struct {
	// Reference lets the collaborator recognise a resubmitted send. It is
	// unique per tenant and client request.
	Reference     string          `json:"reference"`
	TokenId       string          `json:"token_id"`
	AmountUnits   decimal.Decimal `json:"amount_units"`
	Destination   string          `json:"destination"`
	ChangeAddress string          `json:"change_address"`
	DustSatoshis  int64           `json:"dust_satoshis"`
}

type Broadcaster interface {
	GetFundableUtxos(ctx context.Context, tokenId string) (*UtxoSet, error)
	BuildAndBroadcast(ctx context.Context, req BroadcastRequest) (string, error)
}
