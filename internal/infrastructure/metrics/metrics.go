// Package metrics holds the Prometheus collectors for the extraction engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for ExtractionsTotal.
const (
	OutcomeValid     = "valid"
	OutcomeMalformed = "malformed"
	OutcomeNoMatch   = "no_match"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for extraction.
type Metrics struct {
	ExtractionsTotal *prometheus.CounterVec
	ParserPanics     *prometheus.CounterVec
	BatchDuration    *prometheus.HistogramVec
	RowsLogged       prometheus.Counter
}

// Default creates and registers the metrics on first use and returns the
// same instance afterwards, so repeated construction never panics on
// duplicate registration.
//
// Metrics:
//   - txlog_extractions_total{merchant,outcome}
//   - txlog_parser_panics_total{merchant}
//   - txlog_batch_duration_seconds{merchant}
//   - txlog_rows_logged_total
func Default() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ExtractionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "txlog_extractions_total",
					Help: "Emails run through a merchant extractor, by outcome",
				},
				[]string{"merchant", "outcome"},
			),
			ParserPanics: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "txlog_parser_panics_total",
					Help: "Parser calls that panicked and were recovered",
				},
				[]string{"merchant"},
			),
			BatchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "txlog_batch_duration_seconds",
					Help:    "Time spent extracting one merchant batch",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"merchant"},
			),
			RowsLogged: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "txlog_rows_logged_total",
					Help: "Rows newly appended to the transaction log",
				},
			),
		}
	})
	return globalMetrics
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
