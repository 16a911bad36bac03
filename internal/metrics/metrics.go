package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "checkout"

type Metrics struct {
	OrdersCreated          *prometheus.CounterVec
	OrderTransitions       *prometheus.CounterVec
	StockMovements         *prometheus.CounterVec
	PaymentInitializations *prometheus.CounterVec
	PaymentNotifications   *prometheus.CounterVec
	GatewayRequests        *prometheus.CounterVec
	GatewayDuration        *prometheus.HistogramVec
	HTTPRequests           *prometheus.CounterVec
	HTTPDuration           *prometheus.HistogramVec
	OutboxPublished        *prometheus.CounterVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "created_total",
			Help: "Order creation attempts by outcome.",
		}, []string{"outcome"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "transitions_total",
			Help: "Applied order status transitions.",
		}, []string{"from", "to"}),
		StockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "movements_total",
			Help: "Stock reservations and releases by outcome.",
		}, []string{"operation", "outcome"}),
		PaymentInitializations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "initializations_total",
			Help: "Payment initialization attempts by outcome.",
		}, []string{"outcome"}),
		PaymentNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "notifications_total",
			Help: "Provider notifications by reconciliation outcome.",
		}, []string{"outcome"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "requests_total",
			Help: "Calls to the payment provider.",
		}, []string{"operation", "outcome"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "request_duration_seconds",
			Help:    "Latency of calls to the payment provider.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"operation"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "published_total",
			Help: "Outbox messages relayed to Kafka.",
		}, []string{"topic", "outcome"}),
	}

	reg.MustRegister(
		m.OrdersCreated,
		m.OrderTransitions,
		m.StockMovements,
		m.PaymentInitializations,
		m.PaymentNotifications,
		m.GatewayRequests,
		m.GatewayDuration,
		m.HTTPRequests,
		m.HTTPDuration,
		m.OutboxPublished,
	)
	return m
}

// NewUnregistered is for tests and tools that do not expose /metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
