package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	if deps.carts == nil || deps.orders == nil || deps.outboxRepo == nil || deps.idempotencyRepo == nil {
		t.Fatalf("memory dependencies must be initialized: %+v", deps)
	}
	if check := deps.storageChecker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy memory storage, got %+v", check)
	}
	if err := deps.close(); err != nil {
		t.Fatalf("close memory deps: %v", err)
	}
}

func TestInitRuntimeDependencies_MemorySharesOutbox(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	cart := domain.NewCart("u-1")
	event, err := domain.NewOutboxMessage(domain.CartItemsCleared{UserID: "u-1"}, time.Now())
	if err != nil {
		t.Fatalf("outbox message: %v", err)
	}
	if err := deps.carts.Save(context.Background(), cart, []domain.OutboxMessage{event}); err != nil {
		t.Fatalf("save cart: %v", err)
	}

	pending, err := deps.outboxRepo.PullPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != event.ID {
		t.Fatalf("cart save must enqueue into the shared outbox, got %+v", pending)
	}
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "sqlite",
	}, log.WithField("test", "unsupported-driver"))
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.close() }()

	if deps.carts == nil || deps.orders == nil || deps.outboxRepo == nil || deps.idempotencyRepo == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	if check := deps.storageChecker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}

type failingStatsOutbox struct {
	domain.OutboxRepository
}

func (failingStatsOutbox) Stats(context.Context) (domain.OutboxStats, error) {
	return domain.OutboxStats{}, errors.New("stats unavailable")
}

func TestOutboxBacklogChecker(t *testing.T) {
	repo := memory.NewOutboxRepository()
	checker := newOutboxBacklogChecker(repo, 1)

	if check := checker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("empty outbox must be healthy, got %+v", check)
	}

	msgs, err := domain.NewOutboxMessages(time.Now(),
		domain.ClearUserCart{UserID: "u-1"},
		domain.ClearUserCart{UserID: "u-2"},
	)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if err := repo.Enqueue(context.Background(), msgs...); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if check := checker.Check(context.Background()); check.Status != healthcheck.StatusDegraded {
		t.Fatalf("backlog above threshold must be degraded, got %+v", check)
	}

	if check := newOutboxBacklogChecker(failingStatsOutbox{}, 1).Check(context.Background()); check.Status != healthcheck.StatusUnhealthy {
		t.Fatalf("stats error must be unhealthy, got %+v", check)
	}
}
