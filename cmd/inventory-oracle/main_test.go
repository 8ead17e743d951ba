package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/oracle"
)

func quantityMessage(t *testing.T, event domain.ProductQuantityUpdated) *sarama.ConsumerMessage {
	t.Helper()
	msg, err := domain.NewOutboxMessage(event, time.Now())
	require.NoError(t, err)
	value, err := json.Marshal(kafka.NewEnvelope(msg, time.Now()))
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: kafka.TopicInventoryEvents, Key: []byte(event.ProductID), Value: value}
}

func TestParseConfig(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_KAFKA_BROKERS":  "k1:9092, k2:9092",
		"STOREFRONT_ORACLE_CATALOG": "/etc/catalog.json",
	}
	getenv := func(key string) string { return env[key] }

	cfg := parseConfig(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-listen=:6000"}, getenv)
	require.Equal(t, ":6000", cfg.listenAddr)
	require.Equal(t, "/etc/catalog.json", cfg.catalogPath)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.brokers)
	require.Equal(t, defaultConsumerGroup, cfg.consumerGroup)

	cfg = parseConfig(flag.NewFlagSet("test", flag.ContinueOnError), nil, func(string) string { return "" })
	require.Equal(t, defaultListenAddr, cfg.listenAddr)
	require.Empty(t, cfg.brokers)
}

func TestQuantityRouter_AppliesChanges(t *testing.T) {
	book := oracle.NewStockBook()
	book.Set("p-1", 5, decimal.NewFromInt(1))
	router := newQuantityRouter(book, log.WithField("test", "router"))
	ctx := context.Background()

	require.Equal(t, []string{kafka.TopicInventoryEvents}, router.Topics())
	require.NoError(t, router.HandleMessage(ctx, quantityMessage(t, domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: -2})))
	require.Equal(t, int32(3), book.Quantity("p-1"))
	require.NoError(t, router.HandleMessage(ctx, quantityMessage(t, domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: 4})))
	require.Equal(t, int32(7), book.Quantity("p-1"))

	// Неизвестный товар не блокирует партицию.
	require.NoError(t, router.HandleMessage(ctx, quantityMessage(t, domain.ProductQuantityUpdated{ProductID: "p-404", QuantityChange: 1})))
}

func TestQuantityRouter_RedeliveryAppliedOnce(t *testing.T) {
	book := oracle.NewStockBook()
	book.Set("p-1", 5, decimal.NewFromInt(1))
	router := newQuantityRouter(book, log.WithField("test", "router"))
	ctx := context.Background()

	msg := quantityMessage(t, domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: -2})
	require.NoError(t, router.HandleMessage(ctx, msg))
	// Тот же envelope после ребаланса или из dlq-replay.
	require.NoError(t, router.HandleMessage(ctx, msg))
	require.Equal(t, int32(3), book.Quantity("p-1"))
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	catalog := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(catalog, []byte(`[{"product_id":"p-1","quantity":2,"price":"9.99"}]`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, config{listenAddr: addr, catalogPath: catalog}, log.WithField("test", "run"))
	}()

	conn, err := oracle.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()
	client := oracle.NewClient(conn, oracle.WithTimeout(time.Second))

	require.Eventually(t, func() bool {
		qty, err := client.CheckQuantity(context.Background(), "p-1")
		return err == nil && qty == 2
	}, 5*time.Second, 20*time.Millisecond)

	err = client.ReserveQuantity(context.Background(), "p-1", 3)
	require.True(t, errors.Is(err, domain.ErrInsufficientStock), fmt.Sprintf("unexpected error %v", err))

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRun_BadCatalog(t *testing.T) {
	err := run(context.Background(), config{listenAddr: "127.0.0.1:0", catalogPath: filepath.Join(t.TempDir(), "none.json")}, log.WithField("test", "run"))
	require.Error(t, err)
}
