// Package metrics provides Prometheus metrics for the crawl pipeline and
// the HTTP status API. Crawl metrics mirror the coordinator's run counters
// so progress is observable while a crawl is underway:
//   - crawl_urls_discovered_total
//   - crawl_reports_fetched_total
//   - crawl_fetch_failures_total (labeled by failure kind)
//   - crawl_observations_extracted_total
//   - crawl_duration_seconds / crawl_runs_total
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	URLsDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_urls_discovered_total",
			Help: "Report URLs found on category index pages",
		},
	)

	ReportsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_reports_fetched_total",
			Help: "Report pages fetched successfully",
		},
	)

	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_fetch_failures_total",
			Help: "Fetches that failed after all retries",
		},
		[]string{"kind"},
	)

	ObservationsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_observations_extracted_total",
			Help: "Dose observations extracted from report text",
		},
	)

	CrawlDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawl_duration_seconds",
			Help:    "Wall time of complete crawl runs",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		},
	)

	CrawlsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_runs_total",
			Help: "Crawl runs by outcome",
		},
		[]string{"status"},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)
)

func init() {
	prometheus.MustRegister(URLsDiscovered)
	prometheus.MustRegister(ReportsFetched)
	prometheus.MustRegister(FetchFailures)
	prometheus.MustRegister(ObservationsExtracted)
	prometheus.MustRegister(CrawlDuration)
	prometheus.MustRegister(CrawlsTotal)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
}
