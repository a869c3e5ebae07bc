package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the verification counters. A nil *Metrics is a no-op.
type Metrics struct {
	actions            *prometheus.CounterVec
	sideEffects        *prometheus.CounterVec
	activationFailures *prometheus.CounterVec
	auditFailures      prometheus.Counter
}

// New creates the counters and registers them with reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartduka",
			Name:      "verification_actions_total",
			Help:      "Administrative payment verification actions by outcome.",
		}, []string{"action", "outcome"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartduka",
			Name:      "side_effects_total",
			Help:      "Best-effort notification and event tasks by result.",
		}, []string{"task", "result"}),
		activationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartduka",
			Name:      "activation_failures_total",
			Help:      "Subscription activations that failed after a payment was marked paid.",
		}, []string{"path"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartduka",
			Name:      "audit_failures_total",
			Help:      "Audit log appends that could not be written.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.sideEffects, m.activationFailures, m.auditFailures)
	}
	return m
}

// Action counts one workflow action outcome.
func (m *Metrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// SideEffect counts one side-effect task result: ok, failed, dropped or panic.
func (m *Metrics) SideEffect(task, result string) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(task, result).Inc()
}

// ActivationFailure counts a failed activation on path.
func (m *Metrics) ActivationFailure(path string) {
	if m == nil {
		return
	}
	m.activationFailures.WithLabelValues(path).Inc()
}

// AuditFailure counts an audit append failure.
func (m *Metrics) AuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}
