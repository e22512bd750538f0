package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LogRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uisapi_logfile_rotations_total",
		Help: "Total number of request log file rotations",
	})
	LogWriteErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uisapi_logfile_write_errors_total",
		Help: "Total number of failed request log writes or rotations",
	})
	LogBytesWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uisapi_logfile_bytes_written_total",
		Help: "Total bytes appended to the request log file",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uisapi_http_requests_total",
		Help: "Total HTTP requests by method and final status",
	}, []string{"method", "status"})
	HTTPRequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "uisapi_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
)

func init() {
	prometheus.MustRegister(LogRotationsTotal)
	prometheus.MustRegister(LogWriteErrorsTotal)
	prometheus.MustRegister(LogBytesWrittenTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
}

// ObserveRequest records one finished request with the status the client received.
func ObserveRequest(method string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	HTTPRequestDurationMs.Observe(float64(d.Microseconds()) / 1000)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
