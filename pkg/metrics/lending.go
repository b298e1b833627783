package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics counts lifecycle transitions, contract matches and import rows.
type LendingMetrics struct {
	assignmentsCreated   prometheus.Counter
	assignmentsDissolved *prometheus.CounterVec
	contractMatches      *prometheus.CounterVec
	importRows           *prometheus.CounterVec
}

// NewLendingMetrics registers the lending metrics. A nil registerer yields a
// no-op recorder.
func NewLendingMetrics(reg prometheus.Registerer) *LendingMetrics {
	if reg == nil {
		return &LendingMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lending_assignments_created_total",
		Help: "Assignments moved from none to active.",
	})
	dissolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_assignments_dissolved_total",
		Help: "Assignments dissolved, by resulting device status.",
	}, []string{"device_status"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_contract_matches_total",
		Help: "Uploaded contracts by the rule that matched them.",
	}, []string{"rule"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_import_rows_total",
		Help: "Inventory import rows by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(created, dissolved, matches, rows)
	return &LendingMetrics{
		assignmentsCreated:   created,
		assignmentsDissolved: dissolved,
		contractMatches:      matches,
		importRows:           rows,
	}
}

func (m *LendingMetrics) AssignmentCreated() {
	if m == nil || m.assignmentsCreated == nil {
		return
	}
	m.assignmentsCreated.Inc()
}

func (m *LendingMetrics) AssignmentDissolved(deviceStatus string) {
	if m == nil || m.assignmentsDissolved == nil {
		return
	}
	m.assignmentsDissolved.WithLabelValues(normalizeLabel(deviceStatus)).Inc()
}

func (m *LendingMetrics) ContractMatched(rule string) {
	if m == nil || m.contractMatches == nil {
		return
	}
	m.contractMatches.WithLabelValues(normalizeLabel(rule)).Inc()
}

func (m *LendingMetrics) ImportRows(outcome string, n int) {
	if m == nil || m.importRows == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}
