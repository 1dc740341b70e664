// Package metrics exposes numbering and HTTP metrics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"docseries/internal/core/numerator"
)

// Recorder implements numerator.Recorder on Prometheus collectors.
type Recorder struct {
	allocations     *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	exhausted       *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
}

var _ numerator.Recorder = (*Recorder)(nil)

// NewRecorder registers the numbering collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		allocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "numbering_allocations_total",
			Help: "Numbers handed out at save time, by document type and source",
		}, []string{"document_type", "source"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "numbering_conflicts_total",
			Help: "Candidate numbers found taken",
		}, []string{"document_type"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "numbering_exhausted_total",
			Help: "Allocations that ran out of attempts",
		}, []string{"document_type"}),
		reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "numbering_reconciliations_total",
			Help: "Post-save reconciliations by result",
		}, []string{"result"}),
	}
}

func (r *Recorder) Allocated(documentType string, source numerator.Source) {
	r.allocations.WithLabelValues(documentType, string(source)).Inc()
}

func (r *Recorder) Conflict(documentType string) {
	r.conflicts.WithLabelValues(documentType).Inc()
}

func (r *Recorder) Exhausted(documentType string) {
	r.exhausted.WithLabelValues(documentType).Inc()
}

func (r *Recorder) Reconciled(result string) {
	r.reconciliations.WithLabelValues(result).Inc()
}
