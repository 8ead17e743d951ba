package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/oracle"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// startStorefront поднимает storefront поверх bufconn со встроенным складом в режиме reserve.
func startStorefront(t *testing.T, stock int32) (client, *oracle.StockBook) {
	t.Helper()
	base := log.New()
	base.SetOutput(io.Discard)
	logger := base.WithField("component", "loadtest-test")

	store := memory.NewStore()
	book := oracle.NewStockBook()
	book.Set("P-LOAD", stock, decimal.NewFromInt(3))

	orderSvc, err := order.NewService(store.Orders(), book, book,
		order.WithReservation(domain.ReservationModeReserve, book),
		order.WithLogger(logger),
	)
	require.NoError(t, err)

	listener := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	storefrontv1.RegisterCartServiceServer(server, grpcsvc.NewCartService(cart.NewService(store.Carts(), book, cart.WithLogger(logger)), logger))
	storefrontv1.RegisterOrderServiceServer(server, grpcsvc.NewOrderService(orderSvc, memory.NewIdempotencyRepository(), logger))
	go func() { _ = server.Serve(listener) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return newClient(conn), book
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(newFlagSet(), nil)
	require.NoError(t, err)
	require.Equal(t, modeCheckout, cfg.mode)
	require.Equal(t, 400, cfg.total)
	require.False(t, cfg.totalSet)
	require.Equal(t, 5*time.Second, cfg.timeout)
	require.Equal(t, "count:400", runTarget(cfg))
}

func TestParseConfig_Flags(t *testing.T) {
	cfg, err := parseConfig(newFlagSet(), []string{
		"-mode=lifecycle", "-duration=2m", "-total=50", "-delete-rate=30", "-product=P9", "-quantity=2",
	})
	require.NoError(t, err)
	require.Equal(t, modeLifecycle, cfg.mode)
	require.True(t, cfg.totalSet)
	require.Equal(t, 30, cfg.deleteRate)
	require.Equal(t, "duration:2m0s,max-total:50", runTarget(cfg))

	cfg, err = parseConfig(newFlagSet(), []string{"-duration=10s"})
	require.NoError(t, err)
	require.Equal(t, "duration:10s", runTarget(cfg))
}

func TestParseConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-mode=pay"}, "unsupported mode"},
		{[]string{"-duration=-1s"}, "duration must be >= 0"},
		{[]string{"-total=0"}, "total must be > 0 when duration is not set"},
		{[]string{"-duration=1s", "-total=0"}, "explicitly set"},
		{[]string{"-concurrency=0"}, "concurrency must be > 0"},
		{[]string{"-connections=0"}, "connections must be > 0"},
		{[]string{"-timeout=0s"}, "timeout must be > 0"},
		{[]string{"-quantity=0"}, "quantity must be > 0"},
		{[]string{"-delete-rate=101"}, "delete-rate"},
		{[]string{"-product= "}, "product is required"},
		{[]string{"-user-tag= "}, "user-tag is required"},
	}
	for _, tt := range tests {
		_, err := parseConfig(newFlagSet(), tt.args)
		require.Error(t, err, "args %v", tt.args)
		require.Contains(t, err.Error(), tt.want)
	}
}

func TestRun_CheckoutNeverOversells(t *testing.T) {
	cli, book := startStorefront(t, 5)
	cfg := config{total: 8, concurrency: 4, timeout: 5 * time.Second, mode: modeCheckout, productID: "P-LOAD", quantity: 1, userTag: "lt"}

	result := run(context.Background(), cfg, []client{cli})

	require.Equal(t, int64(8), result.TotalScenarios)
	require.Zero(t, result.FailedScenarios)
	require.Equal(t, int64(3), result.RejectedScenarios)
	require.Equal(t, int64(5), result.Methods["CreateOrder"].Success)
	require.Equal(t, int32(0), book.Quantity("P-LOAD"))
}

func TestRun_Lifecycle(t *testing.T) {
	cli, _ := startStorefront(t, 10)
	cfg := config{total: 4, concurrency: 2, timeout: 5 * time.Second, mode: modeLifecycle, deleteRate: 50, productID: "P-LOAD", quantity: 1, userTag: "lt"}

	result := run(context.Background(), cfg, []client{cli})

	require.Equal(t, int64(4), result.SuccessScenarios)
	require.Equal(t, int64(2), result.Methods["DeleteOrder"].Calls)
	require.Equal(t, int64(6), result.Methods["UpdateOrderStatus"].Success)
	require.Equal(t, int64(4), result.Methods["AddItem"].Calls)
}

func TestRun_CartModeCountsStockErrorsAsFailures(t *testing.T) {
	cli, _ := startStorefront(t, 1)
	cfg := config{total: 2, concurrency: 1, timeout: 5 * time.Second, mode: modeCart, productID: "P-LOAD", quantity: 2, userTag: "lt"}

	result := run(context.Background(), cfg, []client{cli})

	require.Equal(t, int64(2), result.FailedScenarios)
	require.Zero(t, result.RejectedScenarios)
	require.Equal(t, int64(2), result.Methods["AddItem"].Codes[codes.FailedPrecondition.String()])
}

func TestDispatchJobs(t *testing.T) {
	jobs := make(chan int, 10)
	dispatchJobs(context.Background(), jobs, config{total: 3})
	var got []int
	for id := range jobs {
		got = append(got, id)
	}
	require.Equal(t, []int{0, 1, 2}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	unbuffered := make(chan int)
	dispatchJobs(ctx, unbuffered, config{duration: time.Hour})
	_, open := <-unbuffered
	require.False(t, open)
}

func TestCall_RecordsCode(t *testing.T) {
	col := newCollector()
	err := call(context.Background(), time.Second, "GetCart", "k-1", col, func(context.Context) error {
		return errors.New("plain error")
	})
	require.Error(t, err)
	snapshot := col.buildReport(time.Now(), time.Second)
	require.Equal(t, int64(1), snapshot.Methods["GetCart"].Failed)
	require.Equal(t, int64(1), snapshot.Methods["GetCart"].Codes[codes.Unknown.String()])
}

func TestShouldDelete(t *testing.T) {
	require.False(t, shouldDelete(0, 0))
	require.True(t, shouldDelete(99, 100))
	require.False(t, shouldDelete(110, 20))
	require.True(t, shouldDelete(114, 20))

	// Доля соблюдается и на коротком прогоне: половина из четырёх, через один.
	var deleted []int
	for i := 0; i < 4; i++ {
		if shouldDelete(i, 50) {
			deleted = append(deleted, i)
		}
	}
	require.Equal(t, []int{1, 3}, deleted)

	for _, rate := range []int{1, 20, 33, 50, 99} {
		count := 0
		for i := 0; i < 100; i++ {
			if shouldDelete(i, rate) {
				count++
			}
		}
		require.Equal(t, rate, count, "rate %d", rate)
	}
}

func TestBuildLatencySummary(t *testing.T) {
	require.Equal(t, latencySummary{}, buildLatencySummary(nil))

	summary := buildLatencySummary([]float64{4, 1, 3, 2})
	require.Equal(t, 1.0, summary.Min)
	require.Equal(t, 4.0, summary.Max)
	require.Equal(t, 2.5, summary.Avg)
	require.Equal(t, 2.5, summary.P50)
	require.InDelta(t, 3.85, summary.P95, 1e-9)
}

func TestPrintAndWriteReport(t *testing.T) {
	col := newCollector()
	col.record(scenarioMethod, time.Millisecond, codes.OK)
	col.record("CreateOrder", time.Millisecond, codes.OK)
	col.reject()
	result := col.buildReport(time.Now(), time.Second)

	var out bytes.Buffer
	printReport(&out, result, config{mode: modeCheckout, total: 1})
	require.Contains(t, out.String(), "rejected=1")
	require.Contains(t, out.String(), "CreateOrder: calls=1")
	require.NotContains(t, out.String(), "scenario: calls")

	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, writeJSONReport("report.json", result))
	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), `"rejected_scenarios": 1`))

	require.Error(t, writeJSONReport(".", result))
	require.Error(t, writeJSONReport("../escape.json", result))
}
