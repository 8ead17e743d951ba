package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
	"github.com/vladislavdragonenkov/storefront/internal/transport/grpcjson"
)

func findFreePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_MissingCatalogFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	cfg.OracleCatalog = filepath.Join(t.TempDir(), "missing.json")

	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestRun_ServesCartAndOrdersOverGRPC(t *testing.T) {
	catalog := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(catalog, []byte(`[{"product_id":"p-1","quantity":5,"price":"2.50"}]`), 0o600))

	grpcPort := findFreePort(t)
	metricsPort := findFreePort(t)
	cfg := DefaultConfig()
	cfg.GRPCAddr = fmt.Sprintf("127.0.0.1:%d", grpcPort)
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", metricsPort)
	cfg.OracleCatalog = catalog
	cfg.OutboxPollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- Run(ctx, cfg) }()
	defer func() {
		cancel()
		select {
		case err := <-runErr:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(10 * time.Second):
			t.Fatal("Run did not stop")
		}
	}()

	conn, err := grpc.NewClient(cfg.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpcjson.WithDefaultCallOptions(),
	)
	require.NoError(t, err)
	defer conn.Close()

	carts := storefrontv1.NewCartServiceClient(conn)
	orders := storefrontv1.NewOrderServiceClient(conn)

	callCtx, callCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer callCancel()

	require.Eventually(t, func() bool {
		_, err := carts.GetCart(callCtx, &storefrontv1.GetCartRequest{UserID: "u-1"})
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "grpc server did not start")

	_, err = carts.AddItem(callCtx, &storefrontv1.AddItemRequest{UserID: "u-1", ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	_, err = carts.AddItem(callCtx, &storefrontv1.AddItemRequest{UserID: "u-2", ProductID: "p-1", Quantity: 9})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	created, err := orders.CreateOrder(callCtx, &storefrontv1.CreateOrderRequest{
		UserID: "u-1",
		Items:  []storefrontv1.OrderLine{{ProductID: "p-1", Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, "5", created.Order.TotalPrice)

	// ClearUserCart доставляется outbox-воркером внутри процесса.
	require.Eventually(t, func() bool {
		resp, err := carts.GetCart(callCtx, &storefrontv1.GetCartRequest{UserID: "u-1"})
		return err == nil && len(resp.Cart.Items) == 0
	}, 5*time.Second, 20*time.Millisecond, "cart was not cleared after order")

	// Отрицательная дельта применилась к встроенному складу: осталось 3.
	require.Eventually(t, func() bool {
		_, err := carts.AddItem(callCtx, &storefrontv1.AddItemRequest{UserID: "u-3", ProductID: "p-1", Quantity: 4})
		return status.Code(err) == codes.FailedPrecondition
	}, 5*time.Second, 20*time.Millisecond, "stock was not decremented")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/readyz", metricsPort))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
