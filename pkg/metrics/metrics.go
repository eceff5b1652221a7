// Package metrics exposes the run's live counters to Prometheus. The
// collectors mirror the monitor's cumulative view; Serve is only started when
// a listen address is configured.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuemby/osbench/pkg/log"
)

var (
	RequestsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "osbench_requests_total",
		Help: "Cumulative completed requests by outcome class",
	}, []string{"class"})

	SuccessBytesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "osbench_success_bytes_total",
		Help: "Cumulative payload bytes of successful transfers",
	})

	CumulativeTPS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "osbench_cumulative_tps",
		Help: "Requests per second over the whole run so far",
	})

	CumulativeBandwidthMBps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "osbench_cumulative_bandwidth_mbps",
		Help: "Payload megabytes per second over the whole run so far",
	})

	SuccessRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "osbench_success_rate_percent",
		Help: "Share of completed requests that succeeded",
	})

	WorkersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "osbench_workers_running",
		Help: "Number of live workers",
	})
)

// SetClassCounts publishes the per-class totals.
func SetClassCounts(success, f403, f404, f409, f4xx, f5xx, other, validation int64) {
	RequestsTotal.WithLabelValues("success").Set(float64(success))
	RequestsTotal.WithLabelValues("403").Set(float64(f403))
	RequestsTotal.WithLabelValues("404").Set(float64(f404))
	RequestsTotal.WithLabelValues("409").Set(float64(f409))
	RequestsTotal.WithLabelValues("4xx").Set(float64(f4xx))
	RequestsTotal.WithLabelValues("5xx").Set(float64(f5xx))
	RequestsTotal.WithLabelValues("other").Set(float64(other))
	RequestsTotal.WithLabelValues("validation").Set(float64(validation))
}

// Serve exposes /metrics on addr until the process exits. Failures disable
// the endpoint without affecting the run.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger := log.WithComponent("metrics")
			logger.Warn().Err(err).Str("addr", addr).
				Msg("metrics endpoint disabled")
		}
	}()
}
