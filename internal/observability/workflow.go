package observability

import "github.com/prometheus/client_golang/prometheus"

// WorkflowMetrics menghitung transisi status GRN, operasi yang ditolak, dan posting stok.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	postings    prometheus.Counter
}

func newWorkflowMetrics(registerer prometheus.Registerer) *WorkflowMetrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_grn_transitions_total",
		Help: "Successful GRN status transitions by action and target status.",
	}, []string{"action", "to"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_grn_transition_failures_total",
		Help: "Refused GRN operations by action and error kind.",
	}, []string{"action", "kind"})
	postings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_grn_stock_postings_total",
		Help: "Stock postings sent to the item ledger on inventory approval.",
	})
	registerer.MustRegister(transitions, failures, postings)
	return &WorkflowMetrics{transitions: transitions, failures: failures, postings: postings}
}

// ObserveTransition mencatat transisi yang sudah di-commit.
func (w *WorkflowMetrics) ObserveTransition(action, to string) {
	if w == nil {
		return
	}
	w.transitions.WithLabelValues(action, to).Inc()
}

// ObserveFailure mencatat operasi yang ditolak atau gagal.
func (w *WorkflowMetrics) ObserveFailure(action, kind string) {
	if w == nil {
		return
	}
	w.failures.WithLabelValues(action, kind).Inc()
}

// ObserveStockPostings mencatat jumlah baris ledger yang diposting oleh satu approval.
func (w *WorkflowMetrics) ObserveStockPostings(n int) {
	if w == nil || n <= 0 {
		return
	}
	w.postings.Add(float64(n))
}
