package observability

import "github.com/prometheus/client_golang/prometheus"

// Row outcomes reported by the reconciliation engine.
var rowOutcomes = []string{"inserted", "updated", "skipped", "error"}

// Batch results reported by the reconciliation engine.
var batchResults = []string{"ok", "partial", "failed"}

// ImportMetrics menghitung baris dan batch hasil import.
type ImportMetrics struct {
	rows    *prometheus.CounterVec
	batches *prometheus.CounterVec
}

// NewImportMetrics mendaftarkan counter import pada registerer.
func NewImportMetrics(registerer prometheus.Registerer) *ImportMetrics {
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockbook_import_rows_total",
		Help: "Baris import berdasarkan hasil per baris.",
	}, []string{"outcome"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockbook_import_batches_total",
		Help: "Batch import berdasarkan hasil akhir.",
	}, []string{"result"})
	registerer.MustRegister(rows, batches)
	for _, o := range rowOutcomes {
		rows.WithLabelValues(o)
	}
	for _, r := range batchResults {
		batches.WithLabelValues(r)
	}
	return &ImportMetrics{rows: rows, batches: batches}
}

// ObserveRows menambah n baris untuk outcome.
func (m *ImportMetrics) ObserveRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(outcome).Add(float64(n))
}

// ObserveBatch mencatat satu batch selesai.
func (m *ImportMetrics) ObserveBatch(result string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
}
