package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ehr_explore"

// Analysis evaluation results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Registry owns the explorer's collectors. Each instance has its own
// prometheus registry so tests and multiple servers do not collide.
type Registry struct {
	reg *prometheus.Registry

	AnalysesEvaluated *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	TableRows         *prometheus.GaugeVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		AnalysesEvaluated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_evaluated_total",
				Help:      "Total number of analysis evaluations",
			},
			[]string{"analysis", "result"},
		),
		AnalysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of analysis evaluations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"analysis"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TableRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tables_loaded_rows",
				Help:      "Rows loaded per dataset table",
			},
			[]string{"table"},
		),
	}
}

// RecordAnalysis records one evaluation of an analysis.
func (r *Registry) RecordAnalysis(id string, err error, d time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	r.AnalysesEvaluated.WithLabelValues(id, result).Inc()
	r.AnalysisDuration.WithLabelValues(id).Observe(d.Seconds())
}

// RecordHTTPRequest records metrics for an HTTP request
func (r *Registry) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (r *Registry) SetTableRows(table string, rows int) {
	r.TableRows.WithLabelValues(table).Set(float64(rows))
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
