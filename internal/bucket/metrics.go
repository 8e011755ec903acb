package bucket

import "github.com/prometheus/client_golang/prometheus"

// storeMetrics holds Prometheus metrics for store and cache operations.
type storeMetrics struct {
	hits        prometheus.Counter
	negative    prometheus.Counter
	misses      prometheus.Counter
	queries     *prometheus.CounterVec
	queryErrors prometheus.Counter
	expired     prometheus.Counter
	rejected    prometheus.Counter
	size        prometheus.Gauge
}

// newStoreMetrics creates store metrics labelled with the cache instance id
// and registers them with reg. A nil reg leaves the metrics unregistered.
func newStoreMetrics(reg prometheus.Registerer, instance string) (*storeMetrics, error) {
	labels := prometheus.Labels{"cache": instance}

	m := &storeMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "databuckets",
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of reads served from a cached record",
		}),
		negative: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "databuckets",
			Subsystem:   "cache",
			Name:        "negative_hits_total",
			ConstLabels: labels,
			Help:        "Total number of reads answered by a miss entry",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "databuckets",
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of reads that fell through to the backing store",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "databuckets",
			Subsystem:   "store",
			Name:        "queries_total",
			ConstLabels: labels,
			Help:        "Total number of backing store calls by operation",
		}, []string{"op"}),
		queryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "databuckets",
			Subsystem:   "store",
			Name:        "query_errors_total",
			ConstLabels: labels,
			Help:        "Total number of failed backing store calls",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "databuckets",
			Subsystem:   "store",
			Name:        "expired_total",
			ConstLabels: labels,
			Help:        "Total number of records evicted because they expired",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "databuckets",
			Subsystem:   "store",
			Name:        "rejected_writes_total",
			ConstLabels: labels,
			Help:        "Total number of writes rejected by the structural overwrite guard",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "databuckets",
			Subsystem:   "cache",
			Name:        "entries",
			ConstLabels: labels,
			Help:        "Current number of cache entries, miss entries included",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.hits, m.negative, m.misses, m.queries, m.queryErrors, m.expired, m.rejected, m.size,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *storeMetrics) query(op string, err error) {
	m.queries.WithLabelValues(op).Inc()
	if err != nil {
		m.queryErrors.Inc()
	}
}
