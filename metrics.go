package shadwell

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts Finder activity. A nil *Metrics records nothing.
type Metrics struct {
	Considered   prometheus.Counter
	Rejected     *prometheus.CounterVec
	Selected     prometheus.Counter
	SourceErrors *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Considered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadwell",
			Name:      "candidates_considered_total",
			Help:      "Candidates examined by the eligibility pipeline.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadwell",
			Name:      "candidates_rejected_total",
			Help:      "Candidates removed from a result, by reason.",
		}, []string{"reason"}),
		Selected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadwell",
			Name:      "candidates_selected_total",
			Help:      "Candidates returned in a ranked result.",
		}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadwell",
			Name:      "source_errors_total",
			Help:      "Source listing failures, by source.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.Considered, m.Rejected, m.Selected, m.SourceErrors)
	}
	return m
}

func (m *Metrics) considered(n int) {
	if m != nil {
		m.Considered.Add(float64(n))
	}
}

func (m *Metrics) rejected(reason RejectReason) {
	if m != nil {
		m.Rejected.WithLabelValues(string(reason)).Inc()
	}
}

func (m *Metrics) selected(n int) {
	if m != nil {
		m.Selected.Add(float64(n))
	}
}

func (m *Metrics) sourceError(source string) {
	if m != nil {
		m.SourceErrors.WithLabelValues(source).Inc()
	}
}
