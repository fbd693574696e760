package docstore

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

type storeMetrics struct {
	set   *metrics.Set
	table string
}

func newStoreMetrics(set *metrics.Set, table string) *storeMetrics {
	if set == nil {
		set = metrics.NewSet()
	}
	return &storeMetrics{set: set, table: table}
}

func (m *storeMetrics) name(metric, op string) string {
	return fmt.Sprintf(`%s{table=%q,op=%q}`, metric, m.table, op)
}

// observe records one finished operation.
func (m *storeMetrics) observe(op string, start time.Time, err error) {
	m.set.GetOrCreateCounter(m.name("docstore_operations_total", op)).Inc()
	m.set.GetOrCreateHistogram(m.name("docstore_operation_duration_seconds", op)).UpdateDuration(start)
	if err != nil {
		m.set.GetOrCreateCounter(m.name("docstore_operation_errors_total", op)).Inc()
	}
}

func (m *storeMetrics) rows(op string, n int) {
	m.set.GetOrCreateCounter(m.name("docstore_rows_total", op)).Add(n)
}

func (m *storeMetrics) conflict() {
	m.set.GetOrCreateCounter(fmt.Sprintf(`docstore_unique_conflicts_total{table=%q}`, m.table)).Inc()
}

func (m *storeMetrics) write(w io.Writer) { m.set.WritePrometheus(w) }
