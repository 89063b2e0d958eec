// Package metrics exposes the table's prometheus collectors and the side server
// that serves /metrics and /healthz.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the table collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Rolls          *prometheus.CounterVec
	BetsPlaced     *prometheus.CounterVec
	BetsRejected   *prometheus.CounterVec
	BetsResolved   *prometheus.CounterVec
	StakeSettled   prometheus.Counter
	PayoutSettled  prometheus.Counter
	SettleDuration prometheus.Histogram
	ParkedRolls    prometheus.Gauge

	VaultAssets prometheus.Gauge
	VaultLocked prometheus.Gauge
	VaultShares prometheus.Gauge
	VaultFees   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_rolls_total",
			Help: "rolls fulfilled, by series outcome (none while the point stands)",
		}, []string{"outcome"}),
		BetsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_bets_placed_total",
			Help: "bets accepted, by category",
		}, []string{"category"}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_bets_rejected_total",
			Help: "bets rejected, by error kind",
		}, []string{"kind"}),
		BetsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "craps_bets_resolved_total",
			Help: "bets resolved by settlement, by result",
		}, []string{"result"}),
		StakeSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craps_settlement_stake_units_total",
			Help: "locked stake released by settlement",
		}),
		PayoutSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "craps_settlement_payout_units_total",
			Help: "amount paid back to players by settlement",
		}),
		SettleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "craps_settlement_duration_seconds",
			Help:    "time to settle one roll",
			Buckets: prometheus.DefBuckets,
		}),
		ParkedRolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "craps_parked_rolls",
			Help: "fulfilled rolls waiting for settlement retry",
		}),
		VaultAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "craps_vault_total_assets",
			Help: "vault total assets",
		}),
		VaultLocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "craps_vault_locked",
			Help: "vault assets locked against open bets",
		}),
		VaultShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "craps_vault_total_shares",
			Help: "vault shares outstanding",
		}),
		VaultFees: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "craps_vault_accrued_fees",
			Help: "performance fees accrued and not yet collected",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Rolls, m.BetsPlaced, m.BetsRejected, m.BetsResolved,
			m.StakeSettled, m.PayoutSettled, m.SettleDuration, m.ParkedRolls,
			m.VaultAssets, m.VaultLocked, m.VaultShares, m.VaultFees,
		)
	}
	return m
}

func (m *Metrics) ObserveRoll(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "none"
	}
	m.Rolls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BetPlaced(category string) {
	if m == nil {
		return
	}
	m.BetsPlaced.WithLabelValues(category).Inc()
}

func (m *Metrics) BetRejected(kind string) {
	if m == nil {
		return
	}
	m.BetsRejected.WithLabelValues(kind).Inc()
}

// ObserveSettlement records one settled batch.
func (m *Metrics) ObserveSettlement(seconds float64, stake, payout int64, results map[string]int) {
	if m == nil {
		return
	}
	m.SettleDuration.Observe(seconds)
	m.StakeSettled.Add(float64(stake))
	m.PayoutSettled.Add(float64(payout))
	for result, n := range results {
		m.BetsResolved.WithLabelValues(result).Add(float64(n))
	}
}

func (m *Metrics) SetParked(n int) {
	if m == nil {
		return
	}
	m.ParkedRolls.Set(float64(n))
}

// SetVault mirrors the vault's accounting state.
func (m *Metrics) SetVault(assets, locked, shares, fees int64) {
	if m == nil {
		return
	}
	m.VaultAssets.Set(float64(assets))
	m.VaultLocked.Set(float64(locked))
	m.VaultShares.Set(float64(shares))
	m.VaultFees.Set(float64(fees))
}
