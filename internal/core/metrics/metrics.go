package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	amount       *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_total",
			Help:      "AddTransaction calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		amount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "committed_amount_minor_units_total",
			Help:      "Sum of committed transaction amounts in minor units.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.transactions, m.amount)
	return m
}

func (m *LedgerMetrics) ObserveTransaction(kind, outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, outcome).Inc()
}

func (m *LedgerMetrics) ObserveCommittedAmount(kind string, minorUnits int64) {
	if m == nil {
		return
	}
	m.amount.WithLabelValues(kind).Add(float64(minorUnits))
}

// TransactionsCounter exposes a single series, mainly for tests.
func (m *LedgerMetrics) TransactionsCounter(kind, outcome string) prometheus.Counter {
	return m.transactions.WithLabelValues(kind, outcome)
}
