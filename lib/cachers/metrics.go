package cachers

import "github.com/VictoriaMetrics/metrics"

// lookup counters, exposed via IDatabase.WriteMetrics
var (
	metricGets      = metrics.NewCounter("cachers_db_gets_total")
	metricHits      = metrics.NewCounter("cachers_db_hits_total")
	metricNegatives = metrics.NewCounter("cachers_db_negative_hits_total")
	metricMisses    = metrics.NewCounter("cachers_db_misses_total")
)
