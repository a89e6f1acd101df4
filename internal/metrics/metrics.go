// Package metrics holds the Prometheus collectors shared by the store and
// the lifecycle engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeOperations counts store calls by collection, operation and result
	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffcs_store_operations_total",
		Help: "Total store operations by collection, operation and result",
	}, []string{"collection", "op", "result"})

	// storeDuration tracks store call latency
	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ffcs_store_operation_duration_seconds",
		Help:    "Store operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"collection", "op"})

	// notifications counts appended change notifications
	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffcs_notifications_total",
		Help: "Total change notifications by type and result",
	}, []string{"type", "result"})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultMiss  = "miss"
	ResultError = "error"
)

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveStore records one store call that started at start. result is one
// of the Result labels.
func ObserveStore(collection, op string, start time.Time, result string) {
	storeOperations.WithLabelValues(collection, op, result).Inc()
	storeDuration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}

// ObserveNotification records one notification append.
func ObserveNotification(notificationType string, err error) {
	notifications.WithLabelValues(notificationType, result(err)).Inc()
}
