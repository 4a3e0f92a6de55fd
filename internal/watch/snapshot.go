package watch

import (
	"time"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
)

// Metric names one canonical snapshot field. Sources report their own aliases;
// each client's static table maps aliases to these names before the merge.
type Metric string

const (
	MetricSOLPrice       Metric = "sol_price"
	MetricTotalStake     Metric = "total_stake"
	MetricLeaderRewards  Metric = "leader_rewards"
	MetricCommission     Metric = "commission_earned"
	MetricVotingFee      Metric = "voting_fee"
	MetricPrevEpochTotal Metric = "prev_epoch_total"
	MetricTokenSupply    Metric = "token_supply"
	MetricTokenHolders   Metric = "token_holders"
	MetricToken24hVolume Metric = "token_volume_24h"
	MetricStakingAPY     Metric = "staking_apy"
)

// AllMetrics returns the full canonical metric set in report order.
func AllMetrics() []Metric {
	return []Metric{
		MetricSOLPrice,
		MetricTotalStake,
		MetricLeaderRewards,
		MetricCommission,
		MetricVotingFee,
		MetricPrevEpochTotal,
		MetricToken24hVolume,
		MetricTokenHolders,
		MetricTokenSupply,
		MetricStakingAPY,
	}
}

// WalletBalance is one tracked wallet's balance within a snapshot, labeled and
// ordered as configured.
type WalletBalance struct {
	Label   string
	Address string
	Amount  normalize.Value
}

// Snapshot is one fully-merged set of canonical metrics for a reporting cycle.
// Every canonical metric is present, possibly as Unknown. A snapshot is built
// once by the aggregator and never mutated afterwards; per-source failures ride
// along in SourceErrors as a data-quality signal rather than an error.
type Snapshot struct {
	Epoch        uint64
	Metrics      map[Metric]normalize.Value
	Balances     []WalletBalance
	BalanceTotal normalize.Value
	SourceErrors map[string]string // source name → classified failure reason
	CollectedAt  time.Time
}

// Metric returns the canonical value for m, Unknown if absent.
func (s *Snapshot) Metric(m Metric) normalize.Value {
	if v, ok := s.Metrics[m]; ok {
		return v
	}
	return normalize.Unknown()
}

// Partial reports whether any source failed or any canonical field is Unknown.
func (s *Snapshot) Partial() bool {
	if len(s.SourceErrors) > 0 {
		return true
	}
	for _, m := range AllMetrics() {
		if s.Metric(m).IsUnknown() {
			return true
		}
	}
	for _, b := range s.Balances {
		if b.Amount.IsUnknown() {
			return true
		}
	}
	return len(s.Balances) == 0 || s.BalanceTotal.IsUnknown()
}

// UnknownFields counts canonical metrics that carry no data.
func (s *Snapshot) UnknownFields() int {
	n := 0
	for _, m := range AllMetrics() {
		if s.Metric(m).IsUnknown() {
			n++
		}
	}
	return n
}
