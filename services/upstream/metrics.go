package upstream

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bff_upstream_request_duration_seconds",
		Help:    "Latency of calls to upstream services, by outcome",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"upstream", "method", "status"},
)

func observe(label, method string, status int, dur time.Duration) {
	s := "error"
	if status > 0 {
		s = strconv.Itoa(status)
	}
	callDuration.WithLabelValues(label, method, s).Observe(dur.Seconds())
}
