package metrics

import (
	"go-accounting-ws/internal/apperrors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts outcomes of the ledger operations. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	transfers  *prometheus.CounterVec
	reversals  *prometheus.CounterVec
	numbers    *prometheus.CounterVec
	collisions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounting_transfers_total",
			Help: "Fund transfers between categories by result.",
		}, []string{"result"}),
		reversals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounting_reversals_total",
			Help: "Transaction deletions by result.",
		}, []string{"result"}),
		numbers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounting_document_numbers_total",
			Help: "Document numbers handed out, by type and by whether the session cache or the store produced them.",
		}, []string{"type", "source"}),
		collisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounting_document_number_collisions_total",
			Help: "Document number candidates rejected because another writer took them.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.transfers, m.reversals, m.numbers, m.collisions)
	return m
}

// Result classifies err into a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsValidationError(err):
		return "invalid"
	case apperrors.IsNotFoundError(err):
		return "not_found"
	case apperrors.IsContentionError(err):
		return "contention"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveTransfer(err error) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) ObserveReversal(err error) {
	if m == nil {
		return
	}
	m.reversals.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) DocumentNumberIssued(docType, source string) {
	if m == nil {
		return
	}
	m.numbers.WithLabelValues(docType, source).Inc()
}

func (m *Metrics) DocumentNumberCollision(docType string) {
	if m == nil {
		return
	}
	m.collisions.WithLabelValues(docType).Inc()
}
