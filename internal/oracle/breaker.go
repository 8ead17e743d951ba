package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CircuitState: состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker размыкает цепь после maxFailures подряд инфраструктурных ошибок склада.
// Бизнес-ответы (нехватка остатка, неизвестный товар) означают, что склад отвечает.
// Отмена вызова на состояние не влияет. В half-open к складу пропускается один пробный вызов.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu            sync.Mutex
	failures      int
	lastFailure   time.Time
	state         CircuitState
	trialInFlight bool
	logger        *log.Entry
}

// NewCircuitBreaker создаёт новый circuit breaker. maxFailures <= 0 отключает размыкание.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "oracle-circuit-breaker")
	}

	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// Execute выполняет операцию через circuit breaker.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	trial, err := cb.before(operation)
	if err != nil {
		return err
	}

	err = fn()
	cb.after(operation, trial, err)
	return err
}

// before пропускает вызов или отказывает. trial=true: вызов пробный в half-open.
func (cb *CircuitBreaker) before(operation string) (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return false, nil
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			return false, fmt.Errorf("%w: circuit breaker is open", domain.ErrOracleUnavailable)
		}
		cb.state = CircuitHalfOpen
		cb.logger.WithField("operation", operation).Info("Circuit breaker half-open")
	}

	if cb.trialInFlight {
		return false, fmt.Errorf("%w: circuit breaker is half-open, trial call in flight", domain.ErrOracleUnavailable)
	}
	cb.trialInFlight = true
	return true, nil
}

func (cb *CircuitBreaker) after(operation string, trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialInFlight = false
	}

	switch {
	case err != nil && domain.IsOracleFailure(err):
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.maxFailures > 0 && (trial || cb.failures >= cb.maxFailures) {
			if cb.state != CircuitOpen {
				cb.logger.WithFields(log.Fields{
					"operation": operation,
					"failures":  cb.failures,
				}).Warn("Circuit breaker opened")
			}
			cb.state = CircuitOpen
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Вызывающий ушёл раньше ответа: о складе ничего не известно.
	case trial || cb.state == CircuitClosed:
		if cb.state == CircuitHalfOpen {
			cb.logger.WithField("operation", operation).Info("Circuit breaker closed")
		}
		cb.state = CircuitClosed
		cb.failures = 0
	}
}

// State возвращает текущее состояние (для health-проверок и тестов).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
