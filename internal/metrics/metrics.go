package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LinksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sublink_links_total", Help: "Share links seen, by protocol and result",
	}, []string{"protocol", "result"})
	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sublink_subscription_fetches_total", Help: "Remote subscription fetches",
	}, []string{"result"})
	BuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sublink_builds_total", Help: "Config builds, by target and result",
	}, []string{"target", "result"})
	BuildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sublink_build_duration_seconds",
		Help:    "Time spent resolving inputs and rendering a config",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sublink_http_requests_total", Help: "HTTP requests, by route and status code",
	}, []string{"route", "code"})
	StorePurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sublink_store_purged_total", Help: "Expired store entries purged",
	})
)

var registerOnce sync.Once

// MustRegister adds every collector to the default registry. Safe to call
// more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(LinksTotal, FetchesTotal, BuildsTotal, BuildSeconds, RequestsTotal, StorePurged)
	})
}
