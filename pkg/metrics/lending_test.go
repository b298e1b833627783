package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLendingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLendingMetrics(reg)

	m.AssignmentCreated()
	m.AssignmentCreated()
	m.AssignmentDissolved("broken")
	m.ContractMatched("filename")
	m.ImportRows("ignored", 3)
	m.ImportRows("ignored", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	created := findMetricFamily(mfs, "lending_assignments_created_total")
	if created == nil || created.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected two created assignments")
	}
	if got, err := fetchCounterValue(mfs, "lending_assignments_dissolved_total", "device_status", "broken"); err != nil || got != 1 {
		t.Fatalf("unexpected dissolved counter %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "lending_contract_matches_total", "rule", "filename"); err != nil || got != 1 {
		t.Fatalf("unexpected match counter %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "lending_import_rows_total", "outcome", "ignored"); err != nil || got != 3 {
		t.Fatalf("unexpected import counter %f err=%v", got, err)
	}
}

func TestLendingMetricsNilSafe(t *testing.T) {
	var m *LendingMetrics
	m.AssignmentCreated()
	NewLendingMetrics(nil).ContractMatched("field")
}
