// Package metrics exposes Prometheus instrumentation for the negotiation engine.
// All recorders are no-ops until Init has been called.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "settlement_"

	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	registerOnce sync.Once

	actionTotal   *prometheus.CounterVec
	actionLatency *prometheus.HistogramVec
	dispatchTotal *prometheus.CounterVec
	expiredTotal  prometheus.Counter
	lockBusyTotal prometheus.Counter
)

// Init registers the engine metrics with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		actionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "actions_total",
				Help: "Offer actions by action and result",
			},
			[]string{"action", "result"},
		)
		actionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "action_latency_seconds",
				Help:    "Offer action latency in seconds, lock wait included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		)
		dispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_total",
				Help: "Offer communications by channel and delivery status",
			},
			[]string{"channel", "status"},
		)
		expiredTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "offers_expired_total",
				Help: "Offers expired by the sweep",
			},
		)
		lockBusyTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "lock_busy_total",
				Help: "Actions abandoned because the offer lock was not acquired in time",
			},
		)

		prometheus.MustRegister(actionTotal, actionLatency, dispatchTotal, expiredTotal, lockBusyTotal)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAction records the outcome and latency of one engine action.
func ObserveAction(action, result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if actionTotal != nil {
		actionTotal.WithLabelValues(action, result).Inc()
	}
	if actionLatency != nil {
		actionLatency.WithLabelValues(action).Observe(duration.Seconds())
	}
}

func IncDispatch(channel, status string) {
	if dispatchTotal != nil {
		dispatchTotal.WithLabelValues(channel, status).Inc()
	}
}

func AddExpired(count int) {
	if count <= 0 {
		return
	}
	if expiredTotal != nil {
		expiredTotal.Add(float64(count))
	}
}

func IncLockBusy() {
	if lockBusyTotal != nil {
		lockBusyTotal.Inc()
	}
}
