// Package metrics holds the prometheus collectors for the sync core.
// Collectors are package vars; the binary registers them once at startup.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/CristianUrbainski/teammate-android/internal/diff"
)

const namespace = "teammate"

var ReconcileMerges = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "merges_total",
}, []string{"list"})

var ReconcileUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "updates_total",
}, []string{"list", "kind"})

var ReconcileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "merge_duration_seconds",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
}, []string{"list"})

var ListSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "list_size",
}, []string{"list"})

var Evictions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "viewmodel",
	Name:      "evictions_total",
}, []string{"collection", "reason"})

var RemoteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "api",
	Name:      "errors_total",
}, []string{"endpoint", "code"})

var RemoteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "api",
	Name:      "request_duration_seconds",
	Buckets:   prometheus.DefBuckets,
}, []string{"method"})

var StoreOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "store",
	Name:      "operations_total",
}, []string{"collection", "op"})

var ChatFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "realtime",
	Name:      "frames_total",
}, []string{"direction"})

var GoferChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "gofer",
	Name:      "changes_detected_total",
}, []string{"kind"})

// Collectors returns every collector in this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ReconcileMerges,
		ReconcileUpdates,
		ReconcileDuration,
		ListSize,
		Evictions,
		RemoteErrors,
		RemoteDuration,
		StoreOps,
		ChatFrames,
		GoferChanges,
	}
}

// Register adds every collector to reg. Collectors already registered
// with reg are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}

			return err
		}
	}

	return nil
}

// ObserveMerge records one reconcile step on the named list.
func ObserveMerge(list string, result diff.Result, size int, took time.Duration) {
	ReconcileMerges.WithLabelValues(list).Inc()
	ReconcileDuration.WithLabelValues(list).Observe(took.Seconds())
	ListSize.WithLabelValues(list).Set(float64(size))

	inserted, removed, moved, changed := result.Counts()
	for kind, n := range map[diff.Kind]int{
		diff.Insert: inserted,
		diff.Remove: removed,
		diff.Move:   moved,
		diff.Change: changed,
	} {
		if n > 0 {
			ReconcileUpdates.WithLabelValues(list, kind.String()).Add(float64(n))
		}
	}
}
