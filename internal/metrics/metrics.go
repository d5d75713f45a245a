// Package metrics provides Prometheus metrics collection for the session
// engine, mixer, explorer, registry and latent client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feature index / catalog
	indexTracksTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftcast_index_tracks_total",
		Help: "Number of tracks currently loaded in the feature index",
	})
	indexLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftcast_index_load_errors_total",
		Help: "Total number of catalog ingestion failures",
	})

	// Session lifecycle
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftcast_sessions_active",
		Help: "Number of sessions currently tracked by the registry",
	})
	sessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_session_transitions_total",
		Help: "Session lifecycle transitions by from/to state",
	}, []string{"from", "to"})
	sessionResolutionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_session_resolution_total",
		Help: "Session resolution attempts by method and outcome",
	}, []string{"method", "outcome"}) // method=explicit-id|fingerprint|orphan-ip|last-healthy-ip|prewarm-pool

	// Prepare-next / mixer
	prepareNextTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_prepare_next_total",
		Help: "Prepare-next invocations by outcome",
	}, []string{"outcome"}) // outcome=ok|failed|no-candidate|deferred-crossfading|deferred-next-occupied
	crossfadeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "driftcast_crossfade_duration_seconds",
		Help:    "Observed crossfade durations",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 10, 15},
	})

	// Explorer
	explorerSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftcast_explorer_snapshots_total",
		Help: "Total number of explorer snapshot computations",
	})
	explorerSnapshotSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "driftcast_explorer_snapshot_seconds",
		Help:    "Time spent computing an explorer snapshot",
		Buckets: prometheus.DefBuckets,
	})

	// Latent client
	latentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_latent_requests_total",
		Help: "Latent service requests by outcome",
	}, []string{"outcome"}) // outcome=ok|process-exited|service-error|timeout|canceled|circuit-open

	// Circuit breaker (shared across any client resilience wraps)
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driftcast_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed,1=half-open,2=open)",
	}, []string{"name"})
	circuitBreakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_circuit_breaker_trips_total",
		Help: "Circuit breaker trips by name and reason",
	}, []string{"name", "reason"})

	// Process group lifecycle (latent subprocess supervision)
	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_proc_terminate_total",
		Help: "Process termination attempts by signal and outcome",
	}, []string{"signal", "outcome"})
	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_proc_wait_total",
		Help: "Process wait outcomes after termination",
	}, []string{"outcome"})

	// HTTP surface
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftcast_http_requests_total",
		Help: "HTTP requests by route and status class",
	}, []string{"route", "status"})
)

// SetIndexTracksTotal reports the current feature index size.
func SetIndexTracksTotal(n int) { indexTracksTotal.Set(float64(n)) }

// IncIndexLoadError increments the catalog ingestion failure counter.
func IncIndexLoadError() { indexLoadErrors.Inc() }

// SetSessionsActive reports the current registry session count.
func SetSessionsActive(n int) { sessionsActive.Set(float64(n)) }

// RecordSessionTransition records a lifecycle state change.
func RecordSessionTransition(from, to string) {
	sessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordSessionResolution records a registry resolution attempt outcome.
func RecordSessionResolution(method, outcome string) {
	sessionResolutionTotal.WithLabelValues(method, outcome).Inc()
}

// RecordPrepareNext records a prepare-next invocation outcome.
func RecordPrepareNext(outcome string) { prepareNextTotal.WithLabelValues(outcome).Inc() }

// ObserveCrossfadeDuration records the realized crossfade length.
func ObserveCrossfadeDuration(seconds float64) { crossfadeDurationSeconds.Observe(seconds) }

// IncExplorerSnapshot records one explorer snapshot computation.
func IncExplorerSnapshot() { explorerSnapshotsTotal.Inc() }

// ObserveExplorerSnapshotSeconds records explorer snapshot latency.
func ObserveExplorerSnapshotSeconds(seconds float64) { explorerSnapshotSeconds.Observe(seconds) }

// RecordLatentRequest records a latent service call outcome.
func RecordLatentRequest(outcome string) { latentRequestsTotal.WithLabelValues(outcome).Inc() }

// SetCircuitBreakerState reports the numeric circuit breaker state.
func SetCircuitBreakerState(name string, state string) {
	circuitBreakerState.WithLabelValues(name).Set(circuitStateValue(state))
}

// SetCircuitBreakerStatus reports the numeric circuit breaker state directly.
func SetCircuitBreakerStatus(name string, status int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(status))
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip(name, reason string) {
	circuitBreakerTripsTotal.WithLabelValues(name, reason).Inc()
}

func circuitStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open", "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// IncProcTerminate records a process termination attempt.
func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait records the outcome of waiting on a terminated process.
func IncProcWait(outcome string) { procWaitTotal.WithLabelValues(outcome).Inc() }

// RecordHTTPRequest records a completed HTTP request by route and status class.
func RecordHTTPRequest(route, statusClass string) {
	httpRequestsTotal.WithLabelValues(route, statusClass).Inc()
}
