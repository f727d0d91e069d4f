// Package metrics exposes the Prometheus registry used by catproxy.
// Metrics are defined in their respective packages (catapi, pagination,
// server) and registered there via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by catproxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source the /metrics endpoint reads from.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the exposition format for Gatherer. Scrapes of the
// handler itself are counted in Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	)
}

// Metrics Documentation
//
// Upstream Metrics (pkg/catapi):
//   - catapi_requests_total{status} (Counter): Cat API requests by HTTP status or "network_error"
//   - catapi_request_duration_seconds (Histogram): Cat API request duration
//   - catapi_errors_total{class} (Counter): Failures by class (client, server, network, decode, unexpected)
//
// Batch Metrics (pkg/pagination):
//   - catproxy_batch_query_times (Histogram): Pages requested per batch
//   - catproxy_batch_images_returned (Histogram): Images returned per batch after truncation
//   - catproxy_batch_failures_total (Counter): Batches discarded because a page failed
//
// HTTP Metrics (internal/server):
//   - catproxy_http_requests_total{route, code} (Counter): Inbound requests by route and status
//   - catproxy_http_request_duration_seconds{route} (Histogram): Inbound request duration
//
// Scrape Metrics (pkg/metrics):
//   - promhttp_metric_handler_requests_total{code} (Counter): Scrapes of /metrics by status
//   - promhttp_metric_handler_requests_in_flight (Gauge): Scrapes currently being served
//
// Example Prometheus Queries:
//
//   # Upstream error rate
//   sum(rate(catapi_errors_total[5m])) / sum(rate(catapi_requests_total[5m]))
//
//   # Share of batches discarded
//   rate(catproxy_batch_failures_total[5m]) / rate(catproxy_batch_query_times_count[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(catapi_request_duration_seconds_bucket[5m]))
