package bootstrap

import (
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jt828/token-ledger/internal/config"
	"github.com/jt828/token-ledger/internal/repository"
	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	cbImpl "github.com/jt828/token-ledger/pkg/circuitbreaker/implementation"
	"github.com/jt828/token-ledger/pkg/observability"
	obsImpl "github.com/jt828/token-ledger/pkg/observability/implementation"
	"github.com/jt828/token-ledger/pkg/retry"
	retryImpl "github.com/jt828/token-ledger/pkg/retry/implementation"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	DB                *gorm.DB
	CircuitBreaker    circuitbreaker.CircuitBreaker
	UnitOfWorkFactory repository.UnitOfWorkFactory
	// Retry re-runs whole units of work on transient storage failures.
	Retry retry.Retry
}

func InitializeDatabase(cfg config.DatabaseConfig, obs observability.Observability) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(obsImpl.NewGormMetricsPlugin(obs.Meter())); err != nil {
		return nil, err
	}

	cb := NewCircuitBreaker("postgresql", obs.Logger())

	// statements inside a transaction get one attempt
	statementRetry := retryImpl.NewRetry(0)
	uowFactory := repository.NewTransactionDbUnitOfWorkFactory(db, cb, statementRetry)

	return &Database{
		DB:                db,
		CircuitBreaker:    cb,
		UnitOfWorkFactory: uowFactory,
		Retry: retryImpl.NewRetry(3,
			retry.WithInterval(100*time.Millisecond),
			retry.WithMaxInterval(time.Second),
			retry.WithRetryable(IsRetryableStorageError),
		),
	}, nil
}

// NewCircuitBreaker counts only infrastructure failures; business outcomes
// such as insufficient funds leave the breaker closed.
func NewCircuitBreaker(name string, log observability.Logger) circuitbreaker.CircuitBreaker {
	return cbImpl.NewCircuitBreaker(circuitbreaker.Settings{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || apperror.IsBusiness(err) || errors.Is(err, repository.ErrConcurrentRequest)
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})
}

func IsRetryableStorageError(err error) bool {
	if errors.Is(err, repository.ErrConcurrentRequest) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001": // serialization_failure
			return true
		case "40P01": // deadlock_detected
			return true
		case "08006": // connection_failure
			return true
		case "08001": // sqlclient_unable_to_establish_sqlconnection
			return true
		case "08004": // sqlserver_rejected_establishment_of_sqlconnection
			return true
		}
	}

	var netErr *net.OpError
	return errors.As(err, &netErr)
}
