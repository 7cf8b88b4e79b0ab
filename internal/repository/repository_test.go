package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type passthroughCB struct{}

func (p *passthroughCB) Execute(fn func() (any, error)) (any, error) { return fn() }
func (p *passthroughCB) State() circuitbreaker.State                 { return circuitbreaker.Closed }

type passthroughRetry struct{}

func (p *passthroughRetry) Execute(ctx context.Context, fn func() error) error { return fn() }

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(pgdriver.New(pgdriver.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

var alice = model.AccountRef{TenantId: 1, AccountId: 10}

func TestStorageError(t *testing.T) {
	t.Run("business errors pass through", func(t *testing.T) {
		err := storageError("op", apperror.ErrInsufficientFunds)
		assert.Equal(t, apperror.ErrInsufficientFunds, err)
	})

	t.Run("driver errors are marked and stay reachable", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "40001"}
		err := storageError("op", pgErr)

		assert.ErrorIs(t, err, apperror.ErrStorage)
		var target *pgconn.PgError
		require.True(t, errors.As(err, &target))
		assert.Equal(t, "40001", target.Code)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, storageError("op", nil))
	})
}

func TestAccountRepository_Ensure(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts ignoring conflicts", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewAccountRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectExec(regexp.QuoteMeta(
			`INSERT INTO main.accounts (tenant_id, account_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		)).
			WithArgs(int64(1), int64(10), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Ensure(ctx, alice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error is a storage error", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewAccountRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO main.accounts`)).
			WillReturnError(errors.New("connection reset"))

		err := repo.Ensure(ctx, alice)
		assert.ErrorIs(t, err, apperror.ErrStorage)
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestAccountRepository_List(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewAccountRepository(gormDB, &passthroughCB{}, &passthroughRetry{})

	now := time.Now().Truncate(time.Second)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."accounts" ORDER BY tenant_id, account_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "account_id", "created_at"}).
			AddRow(1, 10, now).
			AddRow(1, 11, now))

	refs, err := repo.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []model.AccountRef{{TenantId: 1, AccountId: 10}, {TenantId: 1, AccountId: 11}}, refs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func tokenColumns() []string {
	return []string{"id", "name", "decimals"}
}

func TestTokenRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewTokenRepository(gormDB, &passthroughCB{}, &passthroughRetry{}, false)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."tokens" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(tokenColumns()).AddRow("tok1", "MPX", 8))

		token, err := repo.Get(ctx, "tok1")

		require.NoError(t, err)
		assert.Equal(t, &model.Token{Id: "tok1", Name: "MPX", Decimals: 8}, token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found returns nil", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewTokenRepository(gormDB, &passthroughCB{}, &passthroughRetry{}, false)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."tokens" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(tokenColumns()))

		token, err := repo.Get(ctx, "missing")

		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("not found as error", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := NewTokenRepository(gormDB, &passthroughCB{}, &passthroughRetry{}, true)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."tokens" WHERE id = $1`)).
			WillReturnRows(sqlmock.NewRows(tokenColumns()))

		_, err := repo.Get(ctx, "missing")

		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.NotErrorIs(t, err, apperror.ErrStorage)
	})
}

func TestTokenRepository_GetByName(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewTokenRepository(gormDB, &passthroughCB{}, &passthroughRetry{}, false)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."tokens" WHERE lower(name) = lower($1)`)).
		WillReturnRows(sqlmock.NewRows(tokenColumns()).AddRow("tok1", "MPX", 8))

	token, err := repo.GetByName(context.Background(), "mpx")

	require.NoError(t, err)
	assert.Equal(t, "tok1", token.Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_List(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewTokenRepository(gormDB, &passthroughCB{}, &passthroughRetry{}, false)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."tokens" ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows(tokenColumns()).
			AddRow("tok1", "MPX", 8).
			AddRow("tok2", "USDH", 2))

	tokens, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, int32(2), tokens[1].Decimals)
}
