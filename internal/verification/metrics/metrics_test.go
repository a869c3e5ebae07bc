package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Action("verify_payment", "success")
	m.Action("verify_payment", "success")
	m.SideEffect("email", "dropped")
	m.ActivationFailure("renewal")
	m.AuditFailure()

	if got := testutil.ToFloat64(m.actions.WithLabelValues("verify_payment", "success")); got != 2 {
		t.Fatalf("expected 2 actions, got %v", got)
	}
	if got := testutil.ToFloat64(m.sideEffects.WithLabelValues("email", "dropped")); got != 1 {
		t.Fatalf("expected 1 dropped side effect, got %v", got)
	}
	if got := testutil.ToFloat64(m.auditFailures); got != 1 {
		t.Fatalf("expected 1 audit failure, got %v", got)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 4 {
		t.Fatalf("expected 4 registered series, got %d (%v)", n, err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Action("a", "b")
	m.SideEffect("a", "b")
	m.ActivationFailure("a")
	m.AuditFailure()
}
