package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StorageDriver выбирает реализацию репозиториев.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

const envPrefix = "STOREFRONT_"

// Config описывает настройки запуска storefront.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	// PostgresMaxConns: предел открытых подключений; 0 значит значение драйвера storefront.
	PostgresMaxConns int

	// KafkaBrokers: список брокеров через запятую; пусто значит in-process публикация.
	KafkaBrokers       string
	KafkaConsumerGroup string

	// OracleAddr: адрес inventory-oracle; пусто значит встроенный склад.
	OracleAddr            string
	OracleTimeout         time.Duration
	OracleBreakerFailures int
	OracleBreakerReset    time.Duration
	// OracleCatalog: JSON-файл с остатками для встроенного склада.
	OracleCatalog string

	ReservationMode   domain.ReservationMode
	StatusTransitions domain.TransitionPolicy
	CartMaxAttempts   int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending: порог backlog, после которого /healthz отдаёт degraded.
	OutboxMaxPending int

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	OTelEndpoint string
	OTelInsecure bool
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaConsumerGroup: "storefront-cart",

		OracleTimeout:         3 * time.Second,
		OracleBreakerFailures: 5,
		OracleBreakerReset:    30 * time.Second,

		ReservationMode:   domain.ReservationModeCheck,
		StatusTransitions: domain.TransitionPolicyPermissive,
		CartMaxAttempts:   3,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   100 * time.Millisecond,
		OutboxMaxPending:   1000,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		OTelInsecure: true,
	}
}

// LoadConfigFromEnv накладывает переменные STOREFRONT_* на DefaultConfig и валидирует результат.
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	env.str("GRPC_ADDR", &cfg.GRPCAddr)
	env.str("METRICS_ADDR", &cfg.MetricsAddr)

	var driver string
	if env.str("STORAGE_DRIVER", &driver) {
		cfg.StorageDriver = StorageDriver(strings.ToLower(driver))
	}
	env.str("POSTGRES_DSN", &cfg.PostgresDSN)
	env.boolean("POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	env.integer("POSTGRES_MAX_CONNS", &cfg.PostgresMaxConns)

	env.str("KAFKA_BROKERS", &cfg.KafkaBrokers)
	env.str("KAFKA_CONSUMER_GROUP", &cfg.KafkaConsumerGroup)

	env.str("ORACLE_ADDR", &cfg.OracleAddr)
	env.duration("ORACLE_TIMEOUT", &cfg.OracleTimeout)
	env.integer("ORACLE_BREAKER_FAILURES", &cfg.OracleBreakerFailures)
	env.duration("ORACLE_BREAKER_RESET", &cfg.OracleBreakerReset)
	env.str("ORACLE_CATALOG", &cfg.OracleCatalog)

	var raw string
	if env.str("RESERVATION_MODE", &raw) {
		mode, err := domain.ParseReservationMode(raw)
		env.fail("RESERVATION_MODE", err)
		cfg.ReservationMode = mode
	}
	if env.str("STATUS_TRANSITIONS", &raw) {
		policy, err := domain.ParseTransitionPolicy(raw)
		env.fail("STATUS_TRANSITIONS", err)
		cfg.StatusTransitions = policy
	}
	env.integer("CART_MAX_ATTEMPTS", &cfg.CartMaxAttempts)

	env.duration("OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	env.integer("OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	env.integer("OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	env.duration("OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	env.integer("OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)

	env.duration("IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	env.duration("IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	env.integer("IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	env.str("OTEL_ENDPOINT", &cfg.OTelEndpoint)
	env.boolean("OTEL_INSECURE", &cfg.OTelInsecure)

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, fmt.Errorf("%sPOSTGRES_DSN is required for postgres storage", envPrefix))
		}
		if c.PostgresMaxConns < 0 {
			errs = append(errs, fmt.Errorf("postgres max conns must not be negative, got %d", c.PostgresMaxConns))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if _, err := domain.ParseReservationMode(string(c.ReservationMode)); err != nil {
		errs = append(errs, err)
	}
	if _, err := domain.ParseTransitionPolicy(string(c.StatusTransitions)); err != nil {
		errs = append(errs, err)
	}
	if c.OracleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("oracle timeout must be positive, got %s", c.OracleTimeout))
	}
	if c.OracleBreakerFailures <= 0 {
		errs = append(errs, fmt.Errorf("oracle breaker failures must be positive, got %d", c.OracleBreakerFailures))
	}
	if c.CartMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("cart max attempts must be positive, got %d", c.CartMaxAttempts))
	}
	if c.OutboxPollInterval <= 0 || c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox poll interval, batch size and max attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must not be negative"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("idempotency ttl must be positive"))
	}
	return errors.Join(errs...)
}

// Brokers разбирает KafkaBrokers в список без пустых элементов.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) fail(key string, err error) {
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
}

func (r *envReader) str(key string, dst *string) bool {
	v, ok := r.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	r.fail(key, err)
	if err == nil {
		*dst = n
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	r.fail(key, err)
	if err == nil {
		*dst = b
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	r.fail(key, err)
	if err == nil {
		*dst = d
	}
}
