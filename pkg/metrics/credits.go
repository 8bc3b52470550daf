package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CreditMetrics records outcomes at the consumption gate.
type CreditMetrics struct {
	consumed     prometheus.Counter
	insufficient prometheus.Counter
	resets       prometheus.Counter
}

// NewCreditMetrics registers the credit ledger metrics on the provided registerer.
func NewCreditMetrics(reg prometheus.Registerer) *CreditMetrics {
	if reg == nil {
		return &CreditMetrics{}
	}
	consumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_consumed_total",
		Help: "Credits debited by the consumption gate.",
	})
	insufficient := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_insufficient_total",
		Help: "Consumption attempts rejected for insufficient balance.",
	})
	resets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_daily_resets_total",
		Help: "Daily usage counters zeroed by the reset policy.",
	})
	reg.MustRegister(consumed, insufficient, resets)
	return &CreditMetrics{
		consumed:     consumed,
		insufficient: insufficient,
		resets:       resets,
	}
}

// AddConsumed records a successful debit of n credits.
func (c *CreditMetrics) AddConsumed(n int) {
	if c == nil || c.consumed == nil {
		return
	}
	c.consumed.Add(float64(n))
}

// IncInsufficient increments the rejection counter.
func (c *CreditMetrics) IncInsufficient() {
	if c == nil || c.insufficient == nil {
		return
	}
	c.insufficient.Inc()
}

// IncReset increments the daily reset counter.
func (c *CreditMetrics) IncReset() {
	if c == nil || c.resets == nil {
		return
	}
	c.resets.Inc()
}
