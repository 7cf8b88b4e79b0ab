package repository

import (
	"context"
	"sync"

	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/idempotency"
	"github.com/jt828/token-ledger/pkg/retry"
	"gorm.io/gorm"
)

// UnitOfWork groups repository calls into one database transaction. Every
// mutation of the ledger goes through one.
type UnitOfWork interface {
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
	AccountRepository() AccountRepository
	TokenRepository() TokenRepository
	BalanceRepository() BalanceRepository
	TransferRepository() TransferRepository
	DepositRepository() DepositRepository
	WithdrawalRepository() WithdrawalRepository
	IdempotencyRecordRepository() idempotency.RecordRepository
}

type transactionDbUnitOfWork struct {
	tx                              *gorm.DB
	cb                              circuitbreaker.CircuitBreaker
	retry                           retry.Retry
	accountRepository               AccountRepository
	accountRepositoryOnce           sync.Once
	tokenRepository                 TokenRepository
	tokenRepositoryOnce             sync.Once
	balanceRepository               BalanceRepository
	balanceRepositoryOnce           sync.Once
	transferRepository              TransferRepository
	transferRepositoryOnce          sync.Once
	depositRepository               DepositRepository
	depositRepositoryOnce           sync.Once
	withdrawalRepository            WithdrawalRepository
	withdrawalRepositoryOnce        sync.Once
	idempotencyRecordRepository     idempotency.RecordRepository
	idempotencyRecordRepositoryOnce sync.Once
}

func (u *transactionDbUnitOfWork) AccountRepository() AccountRepository {
	u.accountRepositoryOnce.Do(func() {
		u.accountRepository = NewAccountRepository(u.tx, u.cb, u.retry)
	})
	return u.accountRepository
}

func (u *transactionDbUnitOfWork) TokenRepository() TokenRepository {
	u.tokenRepositoryOnce.Do(func() {
		u.tokenRepository = NewTokenRepository(u.tx, u.cb, u.retry, false)
	})
	return u.tokenRepository
}

func (u *transactionDbUnitOfWork) BalanceRepository() BalanceRepository {
	u.balanceRepositoryOnce.Do(func() {
		u.balanceRepository = NewBalanceRepository(u.tx, u.cb, u.retry)
	})
	return u.balanceRepository
}

func (u *transactionDbUnitOfWork) TransferRepository() TransferRepository {
	u.transferRepositoryOnce.Do(func() {
		u.transferRepository = NewTransferRepository(u.tx, u.cb, u.retry)
	})
	return u.transferRepository
}

func (u *transactionDbUnitOfWork) DepositRepository() DepositRepository {
	u.depositRepositoryOnce.Do(func() {
		u.depositRepository = NewDepositRepository(u.tx, u.cb, u.retry)
	})
	return u.depositRepository
}

func (u *transactionDbUnitOfWork) WithdrawalRepository() WithdrawalRepository {
	u.withdrawalRepositoryOnce.Do(func() {
		u.withdrawalRepository = NewWithdrawalRepository(u.tx, u.cb, u.retry)
	})
	return u.withdrawalRepository
}

func (u *transactionDbUnitOfWork) IdempotencyRecordRepository() idempotency.RecordRepository {
	u.idempotencyRecordRepositoryOnce.Do(func() {
		u.idempotencyRecordRepository = NewIdempotencyRecordRepository(u.tx, u.cb, u.retry)
	})
	return u.idempotencyRecordRepository
}

func (u *transactionDbUnitOfWork) Commit(ctx context.Context) error {
	return storageError("commit", u.tx.WithContext(ctx).Commit().Error)
}

func (u *transactionDbUnitOfWork) Abort(ctx context.Context) error {
	return u.tx.WithContext(ctx).Rollback().Error
}
