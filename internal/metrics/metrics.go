package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels loads and searches that returned real data.
	OutcomeSuccess = "success"
	// OutcomeError labels loads that degraded to an empty dataset.
	OutcomeError = "error"
	// OutcomeFallback labels searches answered with the placeholder result.
	OutcomeFallback = "fallback"

	// ProcedureMatched labels procedures built from a document.
	ProcedureMatched = "matched"
	// ProcedureGeneric labels procedures that fell back to the generic one.
	ProcedureGeneric = "generic"
)

var (
	datasetLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "dataset_loads_total",
			Help:      "Warehouse loads, partitioned by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	datasetLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Name:      "dataset_load_seconds",
			Help:      "Warehouse load latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	datasetCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "dataset_cache_total",
			Help:      "Dataset cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	searchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "search_requests_total",
			Help:      "Procedure searches, partitioned by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	proceduresBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Name:      "procedures_built_total",
			Help:      "Repair procedures built, partitioned by matched or generic.",
		},
		[]string{"result"},
	)
)

// Register attaches fieldops collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		datasetLoadsTotal,
		datasetLoadSeconds,
		datasetCacheTotal,
		searchRequestsTotal,
		proceduresBuiltTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDatasetLoad records a warehouse load duration and outcome.
func ObserveDatasetLoad(source string, duration time.Duration, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	datasetLoadsTotal.WithLabelValues(source, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	datasetLoadSeconds.Observe(duration.Seconds())
}

// ObserveCache records a dataset cache lookup.
func ObserveCache(hit bool) {
	if hit {
		datasetCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	datasetCacheTotal.WithLabelValues("miss").Inc()
}

// ObserveSearch records a search request.
func ObserveSearch(backend, outcome string) {
	if outcome != OutcomeFallback {
		outcome = OutcomeSuccess
	}
	searchRequestsTotal.WithLabelValues(backend, outcome).Inc()
}

// ObserveProcedure records whether a procedure came from a document.
func ObserveProcedure(generic bool) {
	if generic {
		proceduresBuiltTotal.WithLabelValues(ProcedureGeneric).Inc()
		return
	}
	proceduresBuiltTotal.WithLabelValues(ProcedureMatched).Inc()
}
