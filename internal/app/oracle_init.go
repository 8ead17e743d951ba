package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/oracle"
)

// inventory: источник остатков и цен для корзины и заказов.
type inventory struct {
	stock    domain.StockOracle
	prices   domain.PriceOracle
	reserver domain.StockReserver
	// book задан только для встроенного склада; события ProductQuantityUpdated применяются к нему напрямую.
	book    *oracle.StockBook
	closeFn func() error
}

func (i inventory) close() error {
	if i.closeFn == nil {
		return nil
	}
	return i.closeFn()
}

// initInventory подключается к inventory-oracle по cfg.OracleAddr или поднимает встроенный склад.
func initInventory(cfg Config, m *metrics.StorefrontMetrics, healthHandler *healthcheck.Handler, logger *log.Entry) (inventory, error) {
	if cfg.OracleAddr == "" {
		book := oracle.NewStockBook()
		n, err := oracle.LoadCatalogFile(book, cfg.OracleCatalog)
		if err != nil {
			return inventory{}, err
		}
		logger.WithField("products", n).Info("используем встроенный склад")
		return inventory{stock: book, prices: book, reserver: book, book: book}, nil
	}

	conn, err := oracle.Dial(cfg.OracleAddr)
	if err != nil {
		return inventory{}, err
	}
	oracleLogger := logger.WithField("layer", "oracle")
	breaker := oracle.NewCircuitBreaker(cfg.OracleBreakerFailures, cfg.OracleBreakerReset, oracleLogger)
	client := oracle.NewClient(conn,
		oracle.WithTimeout(cfg.OracleTimeout),
		oracle.WithCircuitBreaker(breaker),
		oracle.WithMetrics(m),
		oracle.WithLogger(oracleLogger),
	)
	healthHandler.RegisterChecker("inventory_oracle", healthcheck.NewBreakerChecker("inventory_oracle", func() healthcheck.BreakerState {
		return breaker.State()
	}))

	logger.WithFields(log.Fields{
		"oracle_addr":    cfg.OracleAddr,
		"oracle_timeout": cfg.OracleTimeout,
	}).Info("inventory oracle client initialized")

	return inventory{
		stock:    client,
		prices:   client,
		reserver: client,
		closeFn: func() error {
			if err := conn.Close(); err != nil {
				return fmt.Errorf("close inventory oracle connection: %w", err)
			}
			return nil
		},
	}, nil
}
