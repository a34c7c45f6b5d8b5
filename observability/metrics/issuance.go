package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type IssuanceMetrics struct {
	outcomes         *prometheus.CounterVec
	minted           *prometheus.CounterVec
	checkins         *prometheus.CounterVec
	claims           *prometheus.CounterVec
	activeValidators prometheus.Gauge
	totalValidators  prometheus.Gauge
	seedVersion      prometheus.Gauge
	gated            *prometheus.CounterVec
}

var (
	issuanceOnce     sync.Once
	issuanceRegistry *IssuanceMetrics
)

func Issuance() *IssuanceMetrics {
	issuanceOnce.Do(func() {
		issuanceRegistry = &IssuanceMetrics{
			outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "playmint",
				Name:      "issuance_outcomes_total",
				Help:      "Submission items processed by outcome status.",
			}, []string{"status"}),
			minted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "playmint",
				Name:      "minted_amount_total",
				Help:      "Tokens minted segmented by recipient kind.",
			}, []string{"kind"}),
			checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "playmint",
				Name:      "checkins_total",
				Help:      "Validator check-ins by whether they counted toward the active set.",
			}, []string{"counted"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "playmint",
				Name:      "validator_claims_total",
				Help:      "Validator self-claims by result.",
			}, []string{"result"}),
			activeValidators: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "playmint",
				Name:      "active_validators",
				Help:      "Validators checked in during the current epoch.",
			}),
			totalValidators: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "playmint",
				Name:      "registered_validators",
				Help:      "Registered validator population.",
			}),
			seedVersion: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "playmint",
				Name:      "seed_version",
				Help:      "Number of seed refreshes recorded.",
			}),
			gated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "playmint",
				Name:      "submissions_gated_total",
				Help:      "Submissions ignored by an entry gate.",
			}, []string{"gate"}),
		}
		prometheus.MustRegister(
			issuanceRegistry.outcomes,
			issuanceRegistry.minted,
			issuanceRegistry.checkins,
			issuanceRegistry.claims,
			issuanceRegistry.activeValidators,
			issuanceRegistry.totalValidators,
			issuanceRegistry.seedVersion,
			issuanceRegistry.gated,
		)
	})
	return issuanceRegistry
}

func (m *IssuanceMetrics) ObserveOutcome(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.outcomes.WithLabelValues(status).Inc()
}

func (m *IssuanceMetrics) AddMinted(kind string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.minted.WithLabelValues(kind).Add(float64(amount))
}

func (m *IssuanceMetrics) ObserveCheckin(counted bool) {
	if m == nil {
		return
	}
	label := "false"
	if counted {
		label = "true"
	}
	m.checkins.WithLabelValues(label).Inc()
}

func (m *IssuanceMetrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

func (m *IssuanceMetrics) ObserveGate(gate string) {
	if m == nil {
		return
	}
	m.gated.WithLabelValues(gate).Inc()
}

func (m *IssuanceMetrics) SetEpoch(active, total, seedVersion uint64) {
	if m == nil {
		return
	}
	m.activeValidators.Set(float64(active))
	m.totalValidators.Set(float64(total))
	m.seedVersion.Set(float64(seedVersion))
}
