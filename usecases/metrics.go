package usecases

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the in-process counters of the policy engine. Registered once
// at startup; every usecase shares the same instance.
type Metrics struct {
	DecisionsCreated    *prometheus.CounterVec
	EnforcementVerdicts *prometheus.CounterVec
	WatcherMatches      prometheus.Counter
	SettlementReplays   prometheus.Counter
	IdempotentReplays   prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkhaus",
			Name:      "decisions_created_total",
			Help:      "Payment decisions created, by action.",
		}, []string{"action"}),
		EnforcementVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkhaus",
			Name:      "enforcement_verdicts_total",
			Help:      "Settlement enforcement outcomes.",
		}, []string{"verdict"}),
		WatcherMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkhaus",
			Name:      "watcher_matches_total",
			Help:      "Pending settlements matched by the on-chain watcher.",
		}),
		SettlementReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkhaus",
			Name:      "settlement_replays_total",
			Help:      "Settlement proofs rejected because their tx hash already settled a session.",
		}),
		IdempotentReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parkhaus",
			Name:      "idempotent_replays_total",
			Help:      "Exit requests answered from a stored idempotent response.",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(
			m.DecisionsCreated,
			m.EnforcementVerdicts,
			m.WatcherMatches,
			m.SettlementReplays,
			m.IdempotentReplays,
		)
	}
	return m
}

func (m *Metrics) ObserveDecision(action string) {
	if m == nil {
		return
	}
	m.DecisionsCreated.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveEnforcement(allowed bool) {
	if m == nil {
		return
	}
	verdict := "deny"
	if allowed {
		verdict = "allow"
	}
	m.EnforcementVerdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveWatcherMatch() {
	if m == nil {
		return
	}
	m.WatcherMatches.Inc()
}

func (m *Metrics) ObserveSettlementReplay() {
	if m == nil {
		return
	}
	m.SettlementReplays.Inc()
}

func (m *Metrics) ObserveIdempotentReplay() {
	if m == nil {
		return
	}
	m.IdempotentReplays.Inc()
}
