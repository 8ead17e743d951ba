// Package metrics содержит Prometheus-метрики корзины, оформления заказа и клиента склада.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label "result".
const (
	ResultOK       = "ok"
	ResultNoop     = "noop"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// StatusUnknown: значение label "to" для статуса, который не удалось разобрать.
const StatusUnknown = "unknown"

// StorefrontMetrics содержит метрики доменных сервисов. Все методы безопасны для nil-получателя.
type StorefrontMetrics struct {
	cartMutations      *prometheus.CounterVec
	orderPlacements    *prometheus.CounterVec
	compensationEvents prometheus.Counter
	statusTransitions  *prometheus.CounterVec
	oracleCalls        *prometheus.HistogramVec
	sagaStepDuration   *prometheus.HistogramVec
	activePlacements   prometheus.Gauge
}

// NewStorefrontMetrics регистрирует метрики в DefaultRegisterer.
func NewStorefrontMetrics() *StorefrontMetrics {
	return NewStorefrontMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorefrontMetricsWithRegisterer регистрирует метрики в переданном реестре (в тестах: отдельный Registry).
func NewStorefrontMetricsWithRegisterer(registerer prometheus.Registerer) *StorefrontMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorefrontMetrics{
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by operation and result",
		}, []string{"op", "result"}),
		orderPlacements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_placements_total",
			Help: "Order placement attempts by result",
		}, []string{"mode", "result"}),
		compensationEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_compensation_events_total",
			Help: "ProductQuantityUpdated events with positive delta emitted on order deletion",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Order status transitions by target status and result",
		}, []string{"to", "result"}),
		oracleCalls: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_oracle_call_duration_seconds",
			Help:    "Inventory oracle call latency by method and result",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "result"}),
		sagaStepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_saga_step_duration_seconds",
			Help:    "Duration of order placement saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		activePlacements: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_order_placements",
			Help: "Number of order placements currently in flight",
		}),
	}
}

// RecordCartMutation считает мутацию корзины.
func (m *StorefrontMetrics) RecordCartMutation(op, result string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op, result).Inc()
}

// RecordOrderPlacement считает завершённое оформление заказа.
func (m *StorefrontMetrics) RecordOrderPlacement(mode, result string) {
	if m == nil {
		return
	}
	m.orderPlacements.WithLabelValues(mode, result).Inc()
}

// RecordCompensationEvents добавляет число компенсирующих событий.
func (m *StorefrontMetrics) RecordCompensationEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.compensationEvents.Add(float64(n))
}

// RecordStatusTransition считает попытку смены статуса.
func (m *StorefrontMetrics) RecordStatusTransition(to, result string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(to, result).Inc()
}

// ObserveOracleCall записывает длительность вызова склада.
func (m *StorefrontMetrics) ObserveOracleCall(method, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(method, result).Observe(duration.Seconds())
}

// ObserveSagaStep записывает время выполнения шага оформления заказа.
func (m *StorefrontMetrics) ObserveSagaStep(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sagaStepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// PlacementStarted увеличивает число оформляемых заказов.
func (m *StorefrontMetrics) PlacementStarted() {
	if m == nil {
		return
	}
	m.activePlacements.Inc()
}

// PlacementFinished уменьшает число оформляемых заказов.
func (m *StorefrontMetrics) PlacementFinished() {
	if m == nil {
		return
	}
	m.activePlacements.Dec()
}
