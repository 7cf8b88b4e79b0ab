package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceRepository_Get(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`SELECT * FROM "main"."balances" WHERE tenant_id = $1 AND account_id = $2 AND token_id = $3`)
	columns := []string{"tenant_id", "account_id", "token_id", "amount", "updated_at"}

	t.Run("missing row is zero", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(columns))

		amount, err := repo.Get(ctx, alice, "tok1")

		require.NoError(t, err)
		assert.True(t, amount.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing row", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(query).
			WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "account_id", "token_id", "amount"}).
				AddRow(1, 10, "tok1", "100.5"))

		amount, err := repo.Get(ctx, alice, "tok1")

		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("100.5").Equal(amount))
	})
}

func TestBalanceRepository_List(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."balances" WHERE tenant_id = $1 AND account_id = $2 ORDER BY token_id`)).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "account_id", "token_id", "amount"}).
			AddRow(1, 10, "tok1", "70").
			AddRow(1, 10, "tok2", "0.25"))

	balances, err := repo.List(context.Background(), alice)

	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "tok2", balances[1].TokenId)
	assert.True(t, decimal.RequireFromString("0.25").Equal(balances[1].Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepository_Adjust(t *testing.T) {
	ctx := context.Background()
	credit := regexp.QuoteMeta(`INSERT INTO main.balances AS b (tenant_id, account_id, token_id, amount, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (tenant_id, account_id, token_id) DO UPDATE SET amount = b.amount + EXCLUDED.amount`)
	debit := regexp.QuoteMeta(`UPDATE main.balances SET amount = amount + $1, updated_at = $2 WHERE tenant_id = $3 AND account_id = $4 AND token_id = $5 AND amount + $6 >= 0 RETURNING amount`)

	t.Run("credit upserts and returns the new amount", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})
		delta := decimal.NewFromInt(30)

		mock.ExpectQuery(credit).
			WithArgs(int64(1), int64(10), "tok1", delta, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("130"))

		amount, err := repo.Adjust(ctx, alice, "tok1", delta)

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(130).Equal(amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debit is a conditional update", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})
		delta := decimal.NewFromInt(-30)

		mock.ExpectQuery(debit).
			WithArgs(delta, sqlmock.AnyArg(), int64(1), int64(10), "tok1", delta).
			WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("70"))

		amount, err := repo.Adjust(ctx, alice, "tok1", delta)

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debit matching no row is insufficient funds", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(debit).WillReturnRows(sqlmock.NewRows([]string{"amount"}))

		_, err := repo.Adjust(ctx, alice, "tok1", decimal.NewFromInt(-50))

		assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
		assert.NotErrorIs(t, err, apperror.ErrStorage)
	})

	t.Run("check violation is insufficient funds", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(debit).WillReturnError(&pgconn.PgError{Code: "23514"})

		_, err := repo.Adjust(ctx, alice, "tok1", decimal.NewFromInt(-50))

		assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
	})

	t.Run("other failures are storage errors", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(credit).WillReturnError(errors.New("connection reset"))

		_, err := repo.Adjust(ctx, alice, "tok1", decimal.NewFromInt(5))

		assert.ErrorIs(t, err, apperror.ErrStorage)
	})

	t.Run("zero delta reads the balance", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewBalanceRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."balances"`)).
			WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "account_id", "token_id", "amount"}).
				AddRow(1, 10, "tok1", "12"))

		amount, err := repo.Adjust(ctx, alice, "tok1", decimal.Zero)

		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(12).Equal(amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
