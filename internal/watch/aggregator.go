package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stronghold-labs/epochwatch/internal/metrics"
	"github.com/stronghold-labs/epochwatch/internal/normalize"
)

// Aggregator fans a collection out to every metric source concurrently and
// merges the results into one snapshot. Source order is priority order: the
// first non-Unknown value for a metric wins and later sources never overwrite
// it. A collection always yields a snapshot — a partial report beats none.
type Aggregator struct {
	logger  *slog.Logger
	sources []Source
}

func NewAggregator(logger *slog.Logger, sources ...Source) *Aggregator {
	return &Aggregator{
		logger:  logger.With("component", "aggregator"),
		sources: sources,
	}
}

// Collect fetches all sources concurrently and merges. Each source bounds its
// own timeout, so the slowest healthy source bounds the whole collection.
func (a *Aggregator) Collect(ctx context.Context, epoch uint64) *Snapshot {
	results := make([]SourceResult, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			start := time.Now()
			results[i] = src.Fetch(ctx)
			elapsed := time.Since(start)

			metrics.PollDuration.WithLabelValues(src.Name()).Observe(elapsed.Seconds())
			if results[i].Err != nil {
				metrics.PollTotal.WithLabelValues(src.Name(), "error").Inc()
				a.logger.Warn("source fetch failed",
					"source", src.Name(),
					"reason", results[i].Err.Reason(),
					"error", results[i].Err,
					"duration", elapsed.String(),
				)
				return
			}
			metrics.PollTotal.WithLabelValues(src.Name(), "ok").Inc()
			metrics.PollLastSuccess.WithLabelValues(src.Name()).SetToCurrentTime()
			a.logger.Debug("source fetch ok",
				"source", src.Name(),
				"fields", len(results[i].Fields),
				"duration", elapsed.String(),
			)
		}(i, src)
	}
	wg.Wait()

	return a.merge(epoch, results)
}

func (a *Aggregator) merge(epoch uint64, results []SourceResult) *Snapshot {
	snap := &Snapshot{
		Epoch:        epoch,
		Metrics:      make(map[Metric]normalize.Value, len(AllMetrics())),
		BalanceTotal: normalize.Unknown(),
		SourceErrors: make(map[string]string),
		CollectedAt:  time.Now().UTC(),
	}
	for _, m := range AllMetrics() {
		snap.Metrics[m] = normalize.Unknown()
	}

	for _, res := range results {
		if res.Err != nil {
			snap.SourceErrors[res.Source] = res.Err.Reason()
			continue
		}

		for m, f := range res.Fields {
			if !snap.Metrics[m].IsUnknown() {
				continue // resolved by a higher-priority source
			}
			v := normalize.Parse(f.Raw, f.Hint)
			if v.IsUnknown() {
				continue
			}
			snap.Metrics[m] = v
			metrics.MetricValue.WithLabelValues(string(m)).Set(v.Dec.InexactFloat64())
		}

		if len(res.Balances) > 0 && snap.Balances == nil {
			snap.Balances, snap.BalanceTotal = mergeBalances(res.Balances)
		}
	}

	if n := snap.UnknownFields(); n > 0 {
		a.logger.Warn("snapshot is partial",
			"epoch", epoch,
			"unknown_fields", n,
			"source_errors", snap.SourceErrors,
		)
	}
	metrics.SnapshotUnknownFields.Set(float64(snap.UnknownFields()))

	return snap
}

// mergeBalances parses a balance feed's rows; the total is the sum over all
// configured wallets and stays Unknown if any single balance is Unknown.
func mergeBalances(raw []RawBalance) ([]WalletBalance, normalize.Value) {
	balances := make([]WalletBalance, 0, len(raw))
	total := decimal.Zero
	complete := true

	for _, rb := range raw {
		v := normalize.ParseCurrencyOrCount(rb.Raw)
		balances = append(balances, WalletBalance{
			Label:   rb.Label,
			Address: rb.Address,
			Amount:  v,
		})
		if v.IsUnknown() {
			complete = false
			continue
		}
		total = total.Add(v.Dec)
	}

	if !complete || len(balances) == 0 {
		return balances, normalize.Unknown()
	}
	return balances, normalize.Quantity(total)
}
