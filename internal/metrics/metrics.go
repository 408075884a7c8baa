// Package metrics holds the Prometheus collectors of the catalog service.
// The collectors exist from package init so callers never see nil; Register
// attaches them to a registry once.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catalog"

var (
	once sync.Once

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "code"})

	HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	AuthOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "auth", Name: "operations_total",
		Help: "Auth operations (register, login, refresh, logout, me, profile) by result",
	}, []string{"op", "result"})

	ImageOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "images", Name: "operations_total",
		Help: "Object store operations (put, remove, presign) by result",
	}, []string{"op", "result"})

	OrphanedObjects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "images", Name: "orphaned_total",
		Help: "Objects whose best-effort delete failed",
	})

	OrphansReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "images", Name: "orphans_reclaimed_total",
		Help: "Orphaned objects removed by the background consumer",
	})
)

// Register attaches all collectors to r, or to the default registerer when
// r is nil.  Duplicate registration is ignored.
func Register(r prometheus.Registerer) {
	once.Do(func() {
		if r == nil {
			r = prometheus.DefaultRegisterer
		}
		collectors := []prometheus.Collector{
			HTTPRequests, HTTPLatency, AuthOps, ImageOps, OrphanedObjects, OrphansReclaimed,
		}
		for _, c := range collectors {
			if err := r.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
