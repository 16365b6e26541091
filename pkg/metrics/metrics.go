// Package metrics provides the Prometheus registry and HTTP handler for the
// DSIS client. All metrics are defined in their respective packages (auth,
// client, pagination, cache, export) to keep them modular and avoid
// circular dependencies.
//
// This package also documents every available metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the DSIS client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the metrics of Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Token Metrics (pkg/auth, pkg/client):
//   - dsis_token_requests_total{result} (Counter): Password grant requests by result (ok, rejected, invalid_response, network_error)
//   - dsis_token_refreshes_total (Counter): Token refreshes triggered by a 401
//
// Request Metrics (pkg/client):
//   - dsis_requests_total{operation, status} (Counter): Requests by operation and HTTP status
//   - dsis_request_duration_seconds{operation} (Histogram): Request duration including the 401 retry
//   - dsis_errors_total{class} (Counter): Errors by class (client, server, auth, network, decode)
//
// Pagination Metrics (pkg/pagination):
//   - dsis_pages_fetched_total{entity} (Counter): Non-empty pages fetched
//   - dsis_records_fetched_total{entity} (Counter): Records fetched through pagination
//
// Cache Metrics (pkg/cache):
//   - dsis_cache_hits_total (Counter): Cache hits
//   - dsis_cache_misses_total (Counter): Cache misses
//   - dsis_cache_size_bytes{direction} (Counter): Bytes read from and written to Redis
//   - dsis_cache_errors_total{operation} (Counter): Cache operation errors
//
// Export Metrics (pkg/export):
//   - dsis_export_records_total (Counter): CSV records written
//   - dsis_export_failures_total{reason} (Counter): Aborted exports (fetch, attribute_not_found, write)
//   - dsis_export_uploads_total{result} (Counter): S3 uploads by result
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(dsis_cache_hits_total[5m])) /
//   (sum(rate(dsis_cache_hits_total[5m])) + sum(rate(dsis_cache_misses_total[5m])))
//
//   # Token refreshes per request
//   rate(dsis_token_refreshes_total[1h]) / sum(rate(dsis_requests_total[1h]))
//
//   # Records re-fetched by the widening window
//   sum(dsis_records_fetched_total) - sum(dsis_export_records_total)
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(dsis_request_duration_seconds_bucket[5m]))
