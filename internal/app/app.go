package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	serviceName     = "storefront"
	shutdownTimeout = 5 * time.Second
)

// Run поднимает storefront и блокируется до отмены ctx или падения одного из компонентов.
// При отмене возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithField("component", "app")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	storefrontMetrics := metrics.NewStorefrontMetrics()
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("outbox", newOutboxBacklogChecker(deps.outboxRepo, cfg.OutboxMaxPending))

	inv, err := initInventory(cfg, storefrontMetrics, healthHandler, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := inv.close(); err != nil {
			logger.WithError(err).Warn("failed to close inventory oracle")
		}
	}()

	cartSvc := cart.NewService(deps.carts, inv.stock,
		cart.WithMetrics(storefrontMetrics),
		cart.WithLogger(logger.WithField("layer", "cart")),
		cart.WithMaxAttempts(cfg.CartMaxAttempts),
	)
	orderSvc, err := order.NewService(deps.orders, inv.stock, inv.prices,
		order.WithReservation(cfg.ReservationMode, inv.reserver),
		order.WithTransitionPolicy(cfg.StatusTransitions),
		order.WithMetrics(storefrontMetrics),
		order.WithLogger(logger.WithField("layer", "order")),
	)
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"reservation_mode":   orderSvc.Mode(),
		"status_transitions": cfg.StatusTransitions,
	}).Info("order service configured")

	producer, err := initKafkaProducer(cfg.Brokers(), logger)
	if err != nil {
		return fmt.Errorf("init kafka producer: %w", err)
	}
	defer closeKafkaProducer(producer, logger)

	handlers := eventHandlers(cartSvc, inv.book, logger.WithField("layer", "events"))
	var (
		publisher  domain.OutboxPublisher
		consumer   *kafka.Consumer
		workerOpts = []outbox.Option{
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		}
	)
	if producer != nil {
		publisher = kafka.NewOutboxPublisher(producer)
		workerOpts = append(workerOpts, outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)))
		consumer, err = initEventConsumer(cfg, newEventRouter(handlers, logger.WithField("layer", "kafka")), producer, logger)
		if err != nil {
			return fmt.Errorf("init kafka consumer: %w", err)
		}
	} else {
		publisher = newLocalPublisher(handlers, logger.WithField("layer", "events"))
		logger.Info("kafka не настроена, события доставляются внутри процесса")
	}
	outboxWorker := outbox.NewWorker(deps.outboxRepo, publisher, workerOpts...)
	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithMetrics(metrics.NewCleanupMetricsWithRegisterer(prometheus.DefaultRegisterer)),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	grpcLogger := logger.WithField("layer", "grpc")
	grpcMetrics := registerGRPCMetrics(logger)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	storefrontv1.RegisterCartServiceServer(grpcServer, grpcsvc.NewCartService(cartSvc, grpcLogger))
	storefrontv1.RegisterOrderServiceServer(grpcServer,
		grpcsvc.NewOrderService(orderSvc, deps.idempotencyRepo, grpcLogger).WithIdempotencyTTL(cfg.IdempotencyTTL))
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	metricsSrv := newMetricsServer(cfg.MetricsAddr, healthHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("останавливаем gRPC сервер")
		healthServer.Shutdown()
		stopGRPC(grpcServer, logger)
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			logger.Infof("метрики доступны по адресу %s/metrics", cfg.MetricsAddr)
			logger.Infof("health checks: %[1]s/healthz, %[1]s/livez, %[1]s/readyz", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownHTTP(metricsSrv, logger)
			return nil
		})
	}
	g.Go(func() error {
		return outboxWorker.Run(gctx)
	})
	g.Go(func() error {
		return cleanupWorker.Run(gctx)
	})
	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopKafkaConsumer(consumer, logger)
			return nil
		})
	}

	err = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// registerGRPCMetrics регистрирует серверные метрики gRPC; повторный вызов переиспользует уже зарегистрированные.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// newMetricsServer собирает HTTP-сервер с /metrics и health-эндпоинтами; пустой addr отключает его.
func newMetricsServer(addr string, healthHandler *healthcheck.Handler) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
