package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	v1 "github.com/jt828/token-ledger/api/v1"
	"github.com/jt828/token-ledger/internal/bootstrap"
	"github.com/jt828/token-ledger/internal/config"
	"github.com/jt828/token-ledger/internal/controller"
	"github.com/jt828/token-ledger/internal/interceptor"
	"github.com/jt828/token-ledger/internal/service"
	idempotencyImpl "github.com/jt828/token-ledger/pkg/idempotency/implementation"
	"github.com/jt828/token-ledger/pkg/observability"
	"github.com/jt828/token-ledger/pkg/observability/implementation"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	configPath := flag.String("config", "", "config file (defaults to LEDGER_CONFIG)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	obs, err := implementation.NewObservability(implementation.Config{
		ServiceName:  cfg.ServiceName,
		LogLevel:     cfg.LogLevel,
		OTLPEndpoint: cfg.OTLP.Endpoint,
		MetricsAddr:  cfg.Metrics.Addr,
	})
	if err != nil {
		panic(err)
	}
	log := obs.Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", observability.Err(err))
	}

	reg := implementation.PromRegistry(obs.Meter())
	if reg == nil {
		log.Fatal("prometheus registry not available")
	}

	grpcMetrics := grpc_prometheus.NewServerMetrics()
	reg.MustRegister(grpcMetrics)

	if err := obs.Start(ctx); err != nil {
		log.Error("failed to start observability", observability.Err(err))
	}

	idGen, err := bootstrap.InitializeSnowflake(cfg.Snowflake.NodeId)
	if err != nil {
		log.Fatal("failed to initialize snowflake", observability.Err(err))
	}
	dbs, err := bootstrap.InitializeDatabase(cfg.Database, obs)
	if err != nil {
		log.Fatal("failed to initialize database", observability.Err(err))
	}
	deriver, codec, err := bootstrap.InitializeAddress(cfg.Address)
	if err != nil {
		log.Fatal("failed to initialize address deriver", observability.Err(err))
	}
	broadcaster, settlementConn, err := bootstrap.InitializeSettlement(cfg.Settlement, log)
	if err != nil {
		log.Fatal("failed to initialize settlement client", observability.Err(err))
	}
	idx := bootstrap.InitializeIndexer(cfg.Indexer, log)
	publisher := bootstrap.InitializePublisher(cfg.Kafka)

	idem := idempotencyImpl.NewIdempotency()
	balanceSvc := service.NewBalanceService(dbs.UnitOfWorkFactory, dbs.Retry, deriver, obs)
	transferSvc := service.NewTransferService(dbs.UnitOfWorkFactory, dbs.Retry, idem, idGen, publisher, obs)
	scanner := service.NewDepositScanner(
		service.DepositScannerConfig{
			PageSize:      cfg.Indexer.PageSize,
			MaxPages:      cfg.Indexer.MaxPages,
			ExcludeWindow: cfg.Indexer.ExcludeWindow,
		},
		dbs.UnitOfWorkFactory, dbs.Retry, deriver, idx, idGen, publisher, obs,
	)
	coordinator := service.NewWithdrawalCoordinator(
		service.WithdrawalConfig{ChangeAddress: cfg.Withdrawal.ChangeAddress, DustSatoshis: cfg.Withdrawal.DustSatoshis},
		dbs.UnitOfWorkFactory, dbs.Retry, idem, idGen, codec, broadcaster, publisher, obs,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info("Shutting down server...")
		cancel() // cancel root context
	}()

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatal("failed to listen", observability.String("addr", cfg.GRPC.Addr), observability.Err(err))
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			interceptor.ErrorInterceptor(log),
		),
		grpc.StreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	ledgerCtrl := controller.NewLedgerController(balanceSvc, transferSvc, scanner, coordinator, cfg.Token.Default)

	v1.RegisterLedgerServiceServer(server, ledgerCtrl)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	if sqlDB, err := dbs.DB.DB(); err != nil {
		log.Error("failed to get sql db for health check", observability.Err(err))
	} else if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("database ping failed, server marked as not serving", observability.Err(err))
	} else {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	}

	grpc_health_v1.RegisterHealthServer(server, healthServer)

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := dbs.DB.DB()
				if err != nil || sqlDB.PingContext(ctx) != nil {
					healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				} else {
					healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
				}
			}
		}
	}()

	if cfg.Sweep.Interval > 0 {
		sweeper := service.NewDepositSweeper(dbs.UnitOfWorkFactory, dbs.Retry, scanner, cfg.Sweep.Concurrency, obs)
		go sweeper.Run(ctx, cfg.Sweep.Interval)
		log.Info("deposit sweep enabled", observability.String("interval", cfg.Sweep.Interval.String()))
	}

	grpcMetrics.InitializeMetrics(server)

	go func() {
		log.Info("gRPC server running", observability.String("addr", cfg.GRPC.Addr))
		if err := server.Serve(lis); err != nil {
			log.Fatal("failed to serve", observability.Err(err))
		}
	}()

	<-ctx.Done()
	log.Info("Graceful stopping gRPC server...")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	server.GracefulStop()
	log.Info("gRPC server stopped")

	if err := publisher.Close(); err != nil {
		log.Error("failed to close event publisher", observability.Err(err))
	}
	if err := settlementConn.Close(); err != nil {
		log.Error("failed to close settlement connection", observability.Err(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obs.Close(shutdownCtx); err != nil {
		log.Error("failed to close observability", observability.Err(err))
	}
}
