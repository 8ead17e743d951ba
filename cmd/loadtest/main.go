// Command loadtest гоняет сценарии корзины и оформления заказа против storefront по gRPC
// и печатает сводку латентностей по методам.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
)

const scenarioMethod = "scenario"

type loadMode string

const (
	modeCart      loadMode = "cart"
	modeCheckout  loadMode = "checkout"
	modeLifecycle loadMode = "lifecycle"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	deleteRate  int
	productID   string
	quantity    int
	userTag     string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt        time.Time `json:"started_at"`
	DurationSeconds  float64   `json:"duration_seconds"`
	TotalScenarios   int64     `json:"total_scenarios"`
	SuccessScenarios int64     `json:"success_scenarios"`
	FailedScenarios  int64     `json:"failed_scenarios"`
	// RejectedScenarios: оформление отклонено из-за нехватки товара (FailedPrecondition).
	// Это ожидаемый исход при исчерпании склада: такие сценарии входят в SuccessScenarios.
	RejectedScenarios int64                   `json:"rejected_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu       sync.Mutex
	methods  map[string]*methodStats
	rejected int64
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}
	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) reject() {
	c.mu.Lock()
	c.rejected++
	c.mu.Unlock()
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:         startedAt.UTC(),
		DurationSeconds:   duration.Seconds(),
		RejectedScenarios: c.rejected,
		Methods:           make(map[string]methodReport, len(c.methods)),
	}
	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		mr := methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
		if name == scenarioMethod {
			result.TotalScenarios = mr.Calls
			result.SuccessScenarios = mr.Success
			result.FailedScenarios = mr.Failed
			result.ErrorRate = mr.ErrorRate
			result.ScenarioLatencyMs = mr.LatencyMs
		}
		result.Methods[name] = mr
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

func parseConfig(fs *flag.FlagSet, args []string) (config, error) {
	var (
		cfg       config
		modeValue string
	)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "адрес storefront gRPC")
	fs.IntVar(&cfg.total, "total", 400, "число сценариев; вместе с -duration ограничивает сверху")
	fs.DurationVar(&cfg.duration, "duration", 0, "длительность прогона (например 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "число параллельных воркеров")
	fs.IntVar(&cfg.connections, "connections", 20, "число gRPC-соединений")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "таймаут одного RPC")
	fs.StringVar(&modeValue, "mode", string(modeCheckout), "сценарий: cart | checkout | lifecycle")
	fs.IntVar(&cfg.deleteRate, "delete-rate", 0, "процент заказов, удаляемых вместо доставки (lifecycle)")
	fs.StringVar(&cfg.productID, "product", "P-LOAD", "товар в корзине и заказе")
	fs.IntVar(&cfg.quantity, "quantity", 1, "количество товара в сценарии")
	fs.StringVar(&cfg.userTag, "user-tag", "load", "префикс userId")
	fs.StringVar(&cfg.outputPath, "output", "", "файл для JSON-отчёта")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return config{}, err
	}
	cfg.mode = mode

	switch {
	case cfg.duration < 0:
		return config{}, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return config{}, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return config{}, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return config{}, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return config{}, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return config{}, errors.New("timeout must be > 0")
	case cfg.quantity <= 0 || cfg.quantity > math.MaxInt32:
		return config{}, errors.New("quantity must be > 0")
	case cfg.deleteRate < 0 || cfg.deleteRate > 100:
		return config{}, errors.New("delete-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.productID) == "":
		return config{}, errors.New("product is required")
	case strings.TrimSpace(cfg.userTag) == "":
		return config{}, errors.New("user-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCart, modeCheckout, modeLifecycle:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// client: пара клиентов поверх одного соединения.
type client struct {
	carts  storefrontv1.CartServiceClient
	orders storefrontv1.OrderServiceClient
}

func newClient(cc grpc.ClientConnInterface) client {
	return client{
		carts:  storefrontv1.NewCartServiceClient(cc),
		orders: storefrontv1.NewOrderServiceClient(cc),
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]client, 0, cfg.connections)
	for range cfg.connections {
		conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.WithError(err).Fatal("failed to create grpc client connection")
		}
		conns = append(conns, conn)
		clients = append(clients, newClient(conn))
	}

	result := run(context.Background(), cfg, clients)
	for _, conn := range conns {
		_ = conn.Close()
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			log.WithError(err).Fatal("failed to write report")
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// run раздаёт сценарии воркерам и собирает отчёт.
func run(ctx context.Context, cfg config, clients []client) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := range cfg.concurrency {
		wg.Add(1)
		go func(cli client) {
			defer wg.Done()
			for id := range jobs {
				runScenario(ctx, cli, cfg, id, runID, col)
			}
		}(clients[workerID%len(clients)])
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}
	unbounded := cfg.duration > 0 && !cfg.totalSet
	for i := 0; unbounded || i < cfg.total; i++ {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func runScenario(ctx context.Context, cli client, cfg config, index int, runID string, col *collector) {
	start := time.Now()
	code := codes.OK
	defer func() { col.record(scenarioMethod, time.Since(start), code) }()

	if err := scenario(ctx, cli, cfg, index, runID, col); err != nil {
		code = status.Code(err)
		if code == codes.FailedPrecondition && cfg.mode != modeCart {
			// Склад исчерпан: сценарий отклонён, но сервис ответил корректно.
			col.reject()
			code = codes.OK
		}
	}
}

func scenario(ctx context.Context, cli client, cfg config, index int, runID string, col *collector) error {
	userID := fmt.Sprintf("%s-%s-%d", cfg.userTag, runID, index)
	qty := int32(cfg.quantity)

	err := call(ctx, cfg.timeout, "AddItem", "", col, func(ctx context.Context) error {
		_, err := cli.carts.AddItem(ctx, &storefrontv1.AddItemRequest{UserID: userID, ProductID: cfg.productID, Quantity: qty})
		return err
	})
	if err != nil || cfg.mode == modeCart {
		return err
	}

	var orderID string
	err = call(ctx, cfg.timeout, "CreateOrder", fmt.Sprintf("lt-create-%s-%d", runID, index), col, func(ctx context.Context) error {
		resp, err := cli.orders.CreateOrder(ctx, &storefrontv1.CreateOrderRequest{
			UserID:          userID,
			ShippingAddress: "load test",
			Items:           []storefrontv1.OrderLine{{ProductID: cfg.productID, Quantity: qty}},
		})
		if err != nil {
			return err
		}
		if resp.Order == nil || resp.Order.ID == "" {
			return status.Error(codes.Internal, "create response returned empty order id")
		}
		orderID = resp.Order.ID
		return nil
	})
	if err != nil || cfg.mode == modeCheckout {
		return err
	}

	if err := updateStatus(ctx, cli, cfg, orderID, "Paid", col); err != nil {
		return err
	}
	if shouldDelete(index, cfg.deleteRate) {
		return call(ctx, cfg.timeout, "DeleteOrder", fmt.Sprintf("lt-delete-%s-%d", runID, index), col, func(ctx context.Context) error {
			_, err := cli.orders.DeleteOrder(ctx, &storefrontv1.DeleteOrderRequest{OrderID: orderID})
			return err
		})
	}
	return updateStatus(ctx, cli, cfg, orderID, "Delivered", col)
}

func updateStatus(ctx context.Context, cli client, cfg config, orderID, next string, col *collector) error {
	return call(ctx, cfg.timeout, "UpdateOrderStatus", "", col, func(ctx context.Context) error {
		_, err := cli.orders.UpdateOrderStatus(ctx, &storefrontv1.UpdateOrderStatusRequest{OrderID: orderID, Status: next})
		return err
	})
}

// call выполняет один RPC с таймаутом и учитывает его в статистике метода.
func call(ctx context.Context, timeout time.Duration, method, idempotencyKey string, col *collector, fn func(context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if idempotencyKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, storefrontv1.IdempotencyKeyHeader, idempotencyKey)
	}
	err := fn(ctx)
	col.record(method, time.Since(start), status.Code(err))
	return err
}

func shouldDelete(index, rate int) bool {
	switch {
	case rate <= 0:
		return false
	case rate >= 100:
		return true
	default:
		// Удаления размазаны равномерно: на каждые 100 сценариев ровно rate удалений.
		return index*rate/100 != (index+1)*rate/100
	}
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задаётся явно флагом -output.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	fmt.Fprintln(w, "Load test summary")
	fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d rejected=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg),
		result.TotalScenarios, result.SuccessScenarios, result.RejectedScenarios, result.FailedScenarios, result.ErrorRate,
	)
	fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	l := result.ScenarioLatencyMs
	fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		l.Min, l.Avg, l.P50, l.P95, l.P99, l.Max)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name != scenarioMethod {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Methods[name]
		fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	switch {
	case cfg.duration <= 0:
		return fmt.Sprintf("count:%d", cfg.total)
	case cfg.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	default:
		return fmt.Sprintf("duration:%s", cfg.duration)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует линейно между соседними рангами.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
