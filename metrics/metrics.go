package metrics

import "github.com/prometheus/client_golang/prometheus"

// TableMetrics collects per-table operation counters. All observe methods are
// nil-safe so tables can run without metrics wired.
type TableMetrics struct {
	operations *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	tuples     *prometheus.GaugeVec
}

// NewTableMetrics builds the collectors under the given metric namespace.
func NewTableMetrics(namespace string) *TableMetrics {
	return &TableMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_operations_total",
				Help:      "Total table mutations by operation and status",
			},
			[]string{"table", "operation", "status"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_conflicts_total",
				Help:      "Constraint and write-write conflicts by kind",
			},
			[]string{"table", "kind"},
		),
		tuples: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "table_tuples",
				Help:      "Approximate live tuple count per table",
			},
			[]string{"table"},
		),
	}
}

// Register adds the collectors to the given registerer.
func (m *TableMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.operations, m.conflicts, m.tuples} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *TableMetrics) ObserveOperation(table, operation, status string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(table, operation, status).Inc()
}

func (m *TableMetrics) ObserveConflict(table, kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(table, kind).Inc()
}

func (m *TableMetrics) SetTupleCount(table string, n float64) {
	if m == nil {
		return
	}
	m.tuples.WithLabelValues(table).Set(n)
}
