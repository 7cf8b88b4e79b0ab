package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/events"
	"github.com/jt828/token-ledger/pkg/idempotency"
	"github.com/jt828/token-ledger/pkg/indexer"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/settlement"
	"github.com/shopspring/decimal"
)

// ---- in-memory ledger store ----

type balanceKey struct {
	ref     model.AccountRef
	tokenId string
}

type memState struct {
	accounts    map[model.AccountRef]bool
	tokens      map[string]*model.Token
	balances    map[balanceKey]decimal.Decimal
	transfers   []model.Transfer
	deposits    []model.Deposit
	withdrawals []model.Withdrawal
	records     map[idempotency.Key]idempotency.Record
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[model.AccountRef]bool),
		tokens:   make(map[string]*model.Token),
		balances: make(map[balanceKey]decimal.Decimal),
		records:  make(map[idempotency.Key]idempotency.Record),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	c.transfers = append(c.transfers, s.transfers...)
	c.deposits = append(c.deposits, s.deposits...)
	c.withdrawals = append(c.withdrawals, s.withdrawals...)
	return c
}

// memStore hands out units of work that stage changes on a copy of the state
// and swap it in on commit. Units are serialized, which stands in for row locks.
type memStore struct {
	lock  sync.Mutex
	state *memState

	commits    int
	aborts     int
	commitErr  error
	hideTxids  bool
	adjustHook func(ref model.AccountRef, tokenId string)
}

func newMemStore(tokens ...*model.Token) *memStore {
	s := &memStore{state: newMemState()}
	for _, t := range tokens {
		s.state.tokens[t.Id] = t
	}
	return s
}

func (m *memStore) New(ctx context.Context) (repository.UnitOfWork, error) {
	m.lock.Lock()
	return &memUnitOfWork{store: m, staged: m.state.clone()}, nil
}

func (m *memStore) setBalance(ref model.AccountRef, tokenId string, amount decimal.Decimal) {
	m.state.accounts[ref] = true
	m.state.balances[balanceKey{ref, tokenId}] = amount
}

func (m *memStore) balance(ref model.AccountRef, tokenId string) decimal.Decimal {
	return m.state.balances[balanceKey{ref, tokenId}]
}

type memUnitOfWork struct {
	store  *memStore
	staged *memState
	done   bool
}

func (u *memUnitOfWork) finish() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true
	u.store.lock.Unlock()
	return nil
}

func (u *memUnitOfWork) Commit(ctx context.Context) error {
	if u.store.commitErr != nil {
		err := u.store.commitErr
		u.store.aborts++
		_ = u.finish()
		return err
	}
	u.store.state = u.staged
	u.store.commits++
	return u.finish()
}

func (u *memUnitOfWork) Abort(ctx context.Context) error {
	u.store.aborts++
	return u.finish()
}

func (u *memUnitOfWork) AccountRepository() repository.AccountRepository       { return memAccounts{u} }
func (u *memUnitOfWork) TokenRepository() repository.TokenRepository           { return memTokens{u} }
func (u *memUnitOfWork) BalanceRepository() repository.BalanceRepository       { return memBalances{u} }
func (u *memUnitOfWork) TransferRepository() repository.TransferRepository     { return memTransfers{u} }
func (u *memUnitOfWork) DepositRepository() repository.DepositRepository       { return memDeposits{u} }
func (u *memUnitOfWork) WithdrawalRepository() repository.WithdrawalRepository { return memWithdrawals{u} }
func (u *memUnitOfWork) IdempotencyRecordRepository() idempotency.RecordRepository {
	return memRecords{u}
}

type memAccounts struct{ u *memUnitOfWork }

func (r memAccounts) Ensure(ctx context.Context, ref model.AccountRef) error {
	r.u.staged.accounts[ref] = true
	return nil
}

func (r memAccounts) List(ctx context.Context) ([]model.AccountRef, error) {
	var refs []model.AccountRef
	for ref := range r.u.staged.accounts {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs, nil
}

type memTokens struct{ u *memUnitOfWork }

func (r memTokens) Get(ctx context.Context, id string) (*model.Token, error) {
	return r.u.staged.tokens[id], nil
}

func (r memTokens) GetByName(ctx context.Context, name string) (*model.Token, error) {
	for _, t := range r.u.staged.tokens {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return nil, nil
}

func (r memTokens) List(ctx context.Context) ([]*model.Token, error) {
	var out []*model.Token
	for _, t := range r.u.staged.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

type memBalances struct{ u *memUnitOfWork }

func (r memBalances) Get(ctx context.Context, ref model.AccountRef, tokenId string) (decimal.Decimal, error) {
	return r.u.staged.balances[balanceKey{ref, tokenId}], nil
}

func (r memBalances) List(ctx context.Context, ref model.AccountRef) ([]*model.Balance, error) {
	var out []*model.Balance
	for k, v := range r.u.staged.balances {
		if k.ref == ref {
			out = append(out, &model.Balance{TenantId: ref.TenantId, AccountId: ref.AccountId, TokenId: k.tokenId, Amount: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenId < out[j].TokenId })
	return out, nil
}

func (r memBalances) Adjust(ctx context.Context, ref model.AccountRef, tokenId string, delta decimal.Decimal) (decimal.Decimal, error) {
	if hook := r.u.store.adjustHook; hook != nil {
		hook(ref, tokenId)
	}
	key := balanceKey{ref, tokenId}
	next := r.u.staged.balances[key].Add(delta)
	if next.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s %s: %w", ref, tokenId, apperror.ErrInsufficientFunds)
	}
	r.u.staged.balances[key] = next
	return next, nil
}

type memTransfers struct{ u *memUnitOfWork }

func (r memTransfers) Insert(ctx context.Context, t *model.Transfer) error {
	r.u.staged.transfers = append(r.u.staged.transfers, *t)
	return nil
}

func (r memTransfers) List(ctx context.Context, q repository.TransferQuery) ([]*model.Transfer, error) {
	var out []*model.Transfer
	for i := len(r.u.staged.transfers) - 1; i >= 0; i-- {
		t := r.u.staged.transfers[i]
		if t.TenantId != q.TenantIdEq {
			continue
		}
		if q.AccountIdEq != 0 && t.SendAccountId != q.AccountIdEq && t.RecvAccountId != q.AccountIdEq {
			continue
		}
		if q.TokenIdEq != "" && t.TokenId != q.TokenIdEq {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

type memDeposits struct{ u *memUnitOfWork }

func (r memDeposits) Insert(ctx context.Context, d *model.Deposit) error {
	for _, existing := range r.u.staged.deposits {
		if existing.TenantId == d.TenantId && existing.AccountId == d.AccountId &&
			existing.ExternalTxid == d.ExternalTxid && existing.TokenId == d.TokenId {
			return fmt.Errorf("txid %s: %w", d.ExternalTxid, apperror.ErrDuplicateDeposit)
		}
	}
	r.u.staged.deposits = append(r.u.staged.deposits, *d)
	return nil
}

func (r memDeposits) ListTxids(ctx context.Context, ref model.AccountRef) ([]string, error) {
	if r.u.store.hideTxids {
		return nil, nil
	}
	var out []string
	for _, d := range r.u.staged.deposits {
		if d.TenantId == ref.TenantId && d.AccountId == ref.AccountId {
			out = append(out, d.ExternalTxid)
		}
	}
	return out, nil
}

type memWithdrawals struct{ u *memUnitOfWork }

func (r memWithdrawals) Insert(ctx context.Context, w *model.Withdrawal) error {
	r.u.staged.withdrawals = append(r.u.staged.withdrawals, *w)
	return nil
}

func (r memWithdrawals) List(ctx context.Context, ref model.AccountRef) ([]*model.Withdrawal, error) {
	var out []*model.Withdrawal
	for i := range r.u.staged.withdrawals {
		w := r.u.staged.withdrawals[i]
		if w.TenantId == ref.TenantId && w.AccountId == ref.AccountId {
			out = append(out, &w)
		}
	}
	return out, nil
}

type memRecords struct{ u *memUnitOfWork }

func (r memRecords) Get(ctx context.Context, key idempotency.Key) (*idempotency.Record, error) {
	rec, ok := r.u.staged.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memRecords) Insert(ctx context.Context, rec *idempotency.Record) error {
	if _, ok := r.u.staged.records[rec.Key()]; ok {
		return repository.ErrConcurrentRequest
	}
	r.u.staged.records[rec.Key()] = *rec
	return nil
}

// ---- collaborators ----

type passthroughRetry struct{}

func (passthroughRetry) Execute(ctx context.Context, fn func() error) error { return fn() }

type sequenceSnowflake struct{ next atomic.Int64 }

func (s *sequenceSnowflake) Generate() int64 { return s.next.Add(1) }

type fixedDeriver struct{}

func (fixedDeriver) Derive(tenantId, accountId int64) (string, error) {
	if tenantId <= 0 || accountId <= 0 {
		return "", apperror.ErrInvalidIdentifier
	}
	return fmt.Sprintf("addr-%d-%d", tenantId, accountId), nil
}

type prefixCodec struct{}

func (prefixCodec) Encode(keyHash []byte) string { return fmt.Sprintf("addr-%x", keyHash) }

func (prefixCodec) Validate(addr string) error {
	if len(addr) < 5 || addr[:5] != "addr-" {
		return fmt.Errorf("%q: %w", addr, apperror.ErrInvalidAddress)
	}
	return nil
}

type mockIndexer struct {
	mu      sync.Mutex
	queries []indexer.Query
	QueryFn func(q indexer.Query) ([]indexer.Transaction, error)
}

func (m *mockIndexer) Query(ctx context.Context, q indexer.Query) ([]indexer.Transaction, error) {
	m.mu.Lock()
	q.ExcludeTxids = append([]string(nil), q.ExcludeTxids...)
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	return m.QueryFn(q)
}

type mockBroadcaster struct {
	utxoCalls       int
	broadcasts      []settlement.BroadcastRequest
	ReserveUnits    decimal.Decimal
	GetUtxosErr     error
	BroadcastErr    error
	TxidByReference map[string]string
	OnBroadcast     func()
}

func (m *mockBroadcaster) GetFundableUtxos(ctx context.Context, tokenId string) (*settlement.UtxoSet, error) {
	m.utxoCalls++
	if m.GetUtxosErr != nil {
		return nil, m.GetUtxosErr
	}
	return &settlement.UtxoSet{
		TokenId:    tokenId,
		TokenUtxos: []settlement.Utxo{{Txid: "reserve", TokenUnits: m.ReserveUnits}},
	}, nil
}

func (m *mockBroadcaster) BuildAndBroadcast(ctx context.Context, req settlement.BroadcastRequest) (string, error) {
	m.broadcasts = append(m.broadcasts, req)
	if m.OnBroadcast != nil {
		m.OnBroadcast()
	}
	if m.BroadcastErr != nil {
		return "", m.BroadcastErr
	}
	if txid, ok := m.TxidByReference[req.Reference]; ok {
		return txid, nil
	}
	return "tx-" + req.Reference, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
