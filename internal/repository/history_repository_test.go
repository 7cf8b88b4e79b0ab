package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/idempotency"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositRepository_Insert(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	deposit := &model.Deposit{
		Id:           7,
		TenantId:     1,
		AccountId:    10,
		ExternalTxid: "aa11",
		TokenId:      "tok1",
		Amount:       decimal.NewFromInt(12),
		CreatedAt:    now,
	}

	t.Run("successful insert", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewDepositRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "main"."deposits"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		require.NoError(t, repo.Insert(ctx, deposit))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a duplicate deposit", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewDepositRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "main"."deposits"`)).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "deposits_account_txid_token_key"})
		mock.ExpectRollback()

		err := repo.Insert(ctx, deposit)

		assert.ErrorIs(t, err, apperror.ErrDuplicateDeposit)
		assert.ErrorContains(t, err, "aa11")
		assert.NotErrorIs(t, err, apperror.ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDepositRepository_ListTxids(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewDepositRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

	mock.ExpectQuery(`SELECT "external_txid" FROM "main"\."deposits" WHERE tenant_id = \$1 AND account_id = \$2 GROUP BY .*external_txid.* ORDER BY MAX\(id\)`).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"external_txid"}).AddRow("aa11").AddRow("bb22"))

	txids, err := repo.ListTxids(context.Background(), alice)

	require.NoError(t, err)
	assert.Equal(t, []string{"aa11", "bb22"}, txids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func transferColumns() []string {
	return []string{"id", "tenant_id", "send_account_id", "recv_account_id", "token_id", "amount", "created_at"}
}

func TestTransferRepository_List(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	t.Run("tenant only", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewTransferRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."transfers" WHERE tenant_id = $1 ORDER BY id DESC`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(transferColumns()).
				AddRow(2, 1, 10, 11, "tok1", "30", now).
				AddRow(1, 1, 11, 12, "tok1", "5", now))

		transfers, err := repo.List(ctx, TransferQuery{TenantIdEq: 1})

		require.NoError(t, err)
		require.Len(t, transfers, 2)
		assert.Equal(t, int64(2), transfers[0].Id)
		assert.True(t, decimal.NewFromInt(30).Equal(transfers[0].Amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account matches either side", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewTransferRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(
			`SELECT \* FROM "main"\."transfers" WHERE tenant_id = \$1 AND \(+send_account_id = \$2 OR recv_account_id = \$3\)+ AND token_id = \$4 ORDER BY id DESC`,
		).
			WithArgs(int64(1), int64(10), int64(10), "tok1").
			WillReturnRows(sqlmock.NewRows(transferColumns()).AddRow(2, 1, 10, 11, "tok1", "30", now))

		transfers, err := repo.List(ctx, TransferQuery{TenantIdEq: 1, AccountIdEq: 10, TokenIdEq: "tok1"})

		require.NoError(t, err)
		assert.Len(t, transfers, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransferRepository_Insert(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewTransferRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "main"."transfers"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Insert(context.Background(), &model.Transfer{
		Id:            1,
		TenantId:      1,
		SendAccountId: 10,
		RecvAccountId: 11,
		TokenId:       "tok1",
		Amount:        decimal.NewFromInt(30),
		CreatedAt:     time.Now(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepository_List(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewWithdrawalRepository(gormDB, &passthroughCB{}, &passthroughRetry{})
	now := time.Now().Truncate(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."withdrawals" WHERE tenant_id = $1 AND account_id = $2 ORDER BY id DESC`)).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "account_id", "external_txid", "token_id", "amount", "destination_address", "created_at"}).
			AddRow(3, 1, 10, "cc33", "tok1", "25", "dest", now))

	withdrawals, err := repo.List(context.Background(), alice)

	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, "cc33", withdrawals[0].ExternalTxid)
	assert.Equal(t, "dest", withdrawals[0].DestinationAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepository_Insert(t *testing.T) {
	withdrawal := &model.Withdrawal{
		Id:                 3,
		TenantId:           1,
		AccountId:          10,
		ExternalTxid:       "cc33",
		TokenId:            "tok1",
		Amount:             decimal.NewFromInt(25),
		DestinationAddress: "dest",
		CreatedAt:          time.Now(),
	}

	t.Run("txid already recorded by a concurrent request", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewWithdrawalRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "main"."withdrawals"`)).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "withdrawals_external_txid_key"})
		mock.ExpectRollback()

		err := repo.Insert(context.Background(), withdrawal)

		assert.ErrorIs(t, err, ErrConcurrentRequest)
		assert.ErrorContains(t, err, "cc33")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other failures are storage errors", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewWithdrawalRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "main"."withdrawals"`)).
			WillReturnError(&pgconn.PgError{Code: "23503"})
		mock.ExpectRollback()

		err := repo.Insert(context.Background(), withdrawal)

		assert.ErrorIs(t, err, apperror.ErrStorage)
		assert.NotErrorIs(t, err, ErrConcurrentRequest)
	})
}

func TestIdempotencyRecordRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("get missing returns nil", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewIdempotencyRecordRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."idempotency_records" WHERE tenant_id = $1 AND id = $2`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		record, err := repo.Get(ctx, idempotency.Key{TenantId: 1, Id: 99})

		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("get existing", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewIdempotencyRecordRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."idempotency_records" WHERE tenant_id = $1 AND id = $2`)).
			WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "id", "request_type", "fingerprint", "reference_id", "response_data", "created_at"}).
				AddRow(2, 99, "transfer", "f00d", 5, `{"transfer":{}}`, time.Now()))

		record, err := repo.Get(ctx, idempotency.Key{TenantId: 2, Id: 99})

		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, idempotency.Key{TenantId: 2, Id: 99}, record.Key())
		assert.Equal(t, "f00d", record.Fingerprint)
		assert.Equal(t, idempotency.RequestTypeTransfer, record.RequestType)
		assert.Equal(t, int64(5), record.ReferenceId)
	})

	t.Run("concurrent insert of the same id", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewIdempotencyRecordRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "main"."idempotency_records"`)).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		err := repo.Insert(ctx, &idempotency.Record{TenantId: 1, Id: 99, RequestType: "transfer", CreatedAt: time.Now()})

		assert.ErrorIs(t, err, ErrConcurrentRequest)
		assert.ErrorIs(t, err, apperror.ErrStorage)
	})
}
