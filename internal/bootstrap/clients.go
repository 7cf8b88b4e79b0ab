package bootstrap

import (
	"time"

	"github.com/jt828/token-ledger/internal/config"
	"github.com/jt828/token-ledger/pkg/events"
	eventsImpl "github.com/jt828/token-ledger/pkg/events/implementation"
	"github.com/jt828/token-ledger/pkg/indexer"
	indexerImpl "github.com/jt828/token-ledger/pkg/indexer/implementation"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/retry"
	retryImpl "github.com/jt828/token-ledger/pkg/retry/implementation"
	"github.com/jt828/token-ledger/pkg/settlement"
	settlementImpl "github.com/jt828/token-ledger/pkg/settlement/implementation"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func InitializeIndexer(cfg config.IndexerConfig, log observability.Logger) indexer.Indexer {
	return indexerImpl.NewSLPDBClient(
		indexerImpl.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout},
		NewCircuitBreaker("indexer", log),
		retryImpl.NewRetry(3,
			retry.WithInterval(200*time.Millisecond),
			retry.WithMaxInterval(2*time.Second),
			retry.WithRetryable(indexerImpl.IsRetryable),
		),
	)
}

// InitializeSettlement dials the settlement service lazily; the returned
// connection must be closed on shutdown.
func InitializeSettlement(cfg config.SettlementConfig, log observability.Logger) (settlement.Broadcaster, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(cfg.Target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, nil, err
	}

	broadcaster := settlementImpl.NewGrpcBroadcaster(conn, cfg.Timeout,
		NewCircuitBreaker("settlement", log),
		retryImpl.NewRetry(2,
			retry.WithInterval(200*time.Millisecond),
			retry.WithRetryable(settlementImpl.IsRetryable),
		),
	)
	return broadcaster, conn, nil
}

// InitializePublisher falls back to a publisher that drops events when no
// brokers are configured.
func InitializePublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return eventsImpl.NewNoopPublisher()
	}
	return eventsImpl.NewKafkaPublisher(cfg.Brokers, cfg.Topic, cfg.PublishTimeout)
}
