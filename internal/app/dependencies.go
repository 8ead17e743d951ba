package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies: репозитории выбранного хранилища и их жизненный цикл.
type runtimeDependencies struct {
	carts           domain.CartRepository
	orders          domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository

	storageChecker health.Checker
	closeFn        func() error
}

func (d runtimeDependencies) close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// initRuntimeDependencies открывает хранилище согласно cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.WithField("storage_driver", StorageDriverMemory).Info("используем in-memory хранилище")
		return runtimeDependencies{
			carts:           store.Carts(),
			orders:          store.Orders(),
			outboxRepo:      store.Outbox(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			storageChecker: health.NewSimpleChecker("storage", func(context.Context) error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres storage requires %sPOSTGRES_DSN", envPrefix)
		}
		store, err := postgres.Open(ctx, dsn, postgres.WithMaxConns(cfg.PostgresMaxConns))
		if err != nil {
			return runtimeDependencies{}, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			if state, err := store.MigrationStatus(ctx); err == nil {
				logger.WithFields(log.Fields{
					"schema_version": state.Version,
					"applied":        state.Applied,
				}).Info("схема PostgreSQL актуальна")
			}
		}
		logger.WithFields(log.Fields{
			"storage_driver": StorageDriverPostgres,
			"max_open_conns": store.Stats().MaxOpenConnections,
		}).Info("используем PostgreSQL хранилище")
		return runtimeDependencies{
			carts:           postgres.NewCartRepository(store),
			orders:          postgres.NewOrderRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  health.NewSimpleChecker(store.Name(), store.Check),
			closeFn:         store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// outboxBacklogChecker отдаёт degraded, когда неотправленных сообщений больше maxPending.
type outboxBacklogChecker struct {
	repo       domain.OutboxRepository
	maxPending int
}

func newOutboxBacklogChecker(repo domain.OutboxRepository, maxPending int) *outboxBacklogChecker {
	return &outboxBacklogChecker{repo: repo, maxPending: maxPending}
}

func (c *outboxBacklogChecker) Check(ctx context.Context) health.Check {
	start := time.Now()
	stats, err := c.repo.Stats(ctx)
	check := health.Check{Name: "outbox", Status: health.StatusHealthy}
	switch {
	case err != nil:
		check.Status = health.StatusUnhealthy
		check.Message = err.Error()
	case c.maxPending > 0 && stats.PendingCount > c.maxPending:
		check.Status = health.StatusDegraded
		check.Message = fmt.Sprintf("backlog %d exceeds %d", stats.PendingCount, c.maxPending)
	default:
		check.Message = fmt.Sprintf("pending %d", stats.PendingCount)
	}
	check.DurationMs = time.Since(start).Milliseconds()
	return check
}
