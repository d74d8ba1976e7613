package broker

import (
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Broker Metrics
// --------------------------------------------------------------------------

// All broker counters are registered on the default metrics set and can be
// exported with metrics.WritePrometheus.
var (
	metricTokensCreated    = metrics.NewCounter(`cachers_broker_tokens_created_total`)
	metricDelivered        = metrics.NewCounter(`cachers_broker_delivered_total`)
	metricRegistered       = metrics.NewCounter(`cachers_broker_registered_total`)
	metricContinuationsRun = metrics.NewCounter(`cachers_broker_continuations_run_total`)

	metricResolvedComplete = metrics.NewCounter(`cachers_broker_resolved_total{state="complete"}`)
	metricResolvedNone     = metrics.NewCounter(`cachers_broker_resolved_total{state="none"}`)
	metricResolvedError    = metrics.NewCounter(`cachers_broker_resolved_total{state="error"}`)
)

// resolveCounter returns the resolution counter for a terminal state.
func resolveCounter(s State) *metrics.Counter {
	switch s {
	case StateComplete:
		return metricResolvedComplete
	case StateNone:
		return metricResolvedNone
	default:
		return metricResolvedError
	}
}
