// Package metrics defines the Prometheus collectors used by the search
// service and exposes an HTTP handler for scraping.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all Prometheus collectors for the service. A nil *Metrics is
// valid for callers that do not record anything; see the Observe helpers.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CandidatesScored     prometheus.Histogram
	ScoringFaultsTotal   prometheus.Counter
	CorpusArticles       prometheus.Gauge
	CorpusErrorsTotal    prometheus.Counter
	EnhancerOutcomes     *prometheus.CounterVec
	EnhancerLatency      prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheInvalidations   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, empty_query, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching articles per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CandidatesScored: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_candidates_scored",
				Help:    "Number of published articles scored per search query.",
				Buckets: prometheus.ExponentialBuckets(10, 4, 7),
			},
		),
		ScoringFaultsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_scoring_faults_total",
				Help: "Articles skipped because scoring them panicked.",
			},
		),
		CorpusArticles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_published_articles",
				Help: "Published articles seen by the most recent search.",
			},
		),
		CorpusErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "corpus_read_errors_total",
				Help: "Failed reads of the article corpus.",
			},
		),
		EnhancerOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_enhancer_outcomes_total",
				Help: "Query enhancer results by outcome (enhanced, disabled, timeout, cancelled, circuit_open, malformed, error).",
			},
			[]string{"outcome"},
		),
		EnhancerLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_enhancer_latency_seconds",
				Help:    "Time spent waiting for the query enhancer.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_invalidations_total",
				Help: "Response cache flushes by trigger (api, event).",
			},
			[]string{"trigger"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CandidatesScored,
		m.ScoringFaultsTotal,
		m.CorpusArticles,
		m.CorpusErrorsTotal,
		m.EnhancerOutcomes,
		m.EnhancerLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidations,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveSearch records the outcome of one search.
func (m *Metrics) ObserveSearch(resultType, cacheStatus string, seconds float64, total int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(seconds)
	m.SearchResultsCount.Observe(float64(total))
}

// ObserveEnhancer records one query enhancer call.
func (m *Metrics) ObserveEnhancer(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.EnhancerOutcomes.WithLabelValues(outcome).Inc()
	m.EnhancerLatency.Observe(seconds)
}

// ObserveScoring records how many articles one search scored and how many
// of them faulted.
func (m *Metrics) ObserveScoring(scored, faults int) {
	if m == nil {
		return
	}
	m.CorpusArticles.Set(float64(scored))
	m.CandidatesScored.Observe(float64(scored))
	if faults > 0 {
		m.ScoringFaultsTotal.Add(float64(faults))
	}
}

// CorpusError counts a failed corpus read.
func (m *Metrics) CorpusError() {
	if m == nil {
		return
	}
	m.CorpusErrorsTotal.Inc()
}

// CacheHit counts a response cache hit, or a miss when hit is false.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}

// CacheInvalidated counts a response cache flush.
func (m *Metrics) CacheInvalidated(trigger string) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(trigger).Inc()
}

// SetBreakerState publishes a circuit breaker state as its numeric value.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
