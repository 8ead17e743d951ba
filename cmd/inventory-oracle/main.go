// Команда inventory-oracle: владелец остатков и цен: отвечает на CheckQuantity/CheckPrice,
// атомарно резервирует остаток и применяет ProductQuantityUpdated из Kafka.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/storefront/api/inventoryv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/oracle"
)

const (
	defaultListenAddr    = ":50052"
	defaultConsumerGroup = "storefront-inventory"
	shutdownTimeout      = 5 * time.Second
	consumerMaxAttempts  = 3
)

type config struct {
	listenAddr    string
	catalogPath   string
	brokers       []string
	consumerGroup string
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg := parseConfig(flag.CommandLine, os.Args[1:], os.Getenv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.WithField("component", "inventory-oracle")); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("inventory-oracle завершился с ошибкой")
	}
	log.Info("inventory-oracle остановлен")
}

func parseConfig(fs *flag.FlagSet, args []string, getenv func(string) string) config {
	cfg := config{
		listenAddr:    envOr(getenv, "STOREFRONT_ORACLE_LISTEN_ADDR", defaultListenAddr),
		catalogPath:   getenv("STOREFRONT_ORACLE_CATALOG"),
		consumerGroup: envOr(getenv, "STOREFRONT_ORACLE_CONSUMER_GROUP", defaultConsumerGroup),
	}
	brokers := getenv("STOREFRONT_KAFKA_BROKERS")

	fs.StringVar(&cfg.listenAddr, "listen", cfg.listenAddr, "gRPC listen address")
	fs.StringVar(&cfg.catalogPath, "catalog", cfg.catalogPath, "JSON catalog with initial stock and prices")
	fs.StringVar(&brokers, "brokers", brokers, "comma-separated Kafka brokers; empty disables the consumer")
	fs.StringVar(&cfg.consumerGroup, "group", cfg.consumerGroup, "Kafka consumer group")
	_ = fs.Parse(args)

	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.brokers = append(cfg.brokers, b)
		}
	}
	return cfg
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	book := oracle.NewStockBook()
	n, err := oracle.LoadCatalogFile(book, cfg.catalogPath)
	if err != nil {
		return err
	}
	logger.WithField("products", n).Info("каталог загружен")

	grpcServer := grpc.NewServer()
	inventoryv1.RegisterInventoryOracleServer(grpcServer, oracle.NewServer(book, logger.WithField("layer", "grpc")))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		return err
	}

	var consumer *kafka.Consumer
	if len(cfg.brokers) > 0 {
		router := newQuantityRouter(book, logger.WithField("layer", "kafka"))
		consumer, err = kafka.NewConsumer(cfg.brokers, cfg.consumerGroup, router.Topics(), router.HandleMessage)
		if err != nil {
			_ = lis.Close()
			return fmt.Errorf("init kafka consumer: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("inventory-oracle слушает %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthServer.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			grpcServer.Stop()
		}
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			return consumer.Stop()
		})
	}

	err = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// quantityDedupWindow: сколько последних id событий помнится, чтобы повторная доставка
// не применила изменение остатка дважды.
const quantityDedupWindow = 10000

// newQuantityRouter применяет ProductQuantityUpdated к складу. Неизвестный товар пропускается с предупреждением.
func newQuantityRouter(book *oracle.StockBook, logger *log.Entry) *kafka.Router {
	return kafka.NewRouter(logger).WithDedup(quantityDedupWindow).Handle(domain.EventProductQuantityUpdated, func(_ context.Context, event domain.Event) error {
		change, ok := event.(domain.ProductQuantityUpdated)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}
		left, err := book.ApplyQuantityChange(change)
		if errors.Is(err, domain.ErrProductNotFound) {
			logger.WithField("product_id", change.ProductID).Warn("quantity change for unknown product")
			return nil
		}
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{
			"product_id":      change.ProductID,
			"quantity_change": change.QuantityChange,
			"quantity":        left,
		}).Info("stock updated")
		return nil
	})
}
