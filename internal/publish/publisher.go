// Package publish renders snapshots into the epoch report layout.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
	"github.com/stronghold-labs/epochwatch/internal/notify"
	"github.com/stronghold-labs/epochwatch/internal/watch"
)

// Publisher turns a snapshot into the fixed report field list and hands it
// to the notification sink. Unknown metrics render as "N/A" so a degraded
// report still shows every line and never a misleading zero.
type Publisher struct {
	sink        notify.Sink
	tokenSymbol string
	logger      *slog.Logger
}

func NewPublisher(sink notify.Sink, tokenSymbol string, logger *slog.Logger) *Publisher {
	return &Publisher{
		sink:        sink,
		tokenSymbol: tokenSymbol,
		logger:      logger.With("component", "publisher"),
	}
}

// Publish sends one epoch report.
func (p *Publisher) Publish(ctx context.Context, snap *watch.Snapshot) error {
	title := fmt.Sprintf("Epoch %d Report", snap.Epoch)
	if err := p.sink.Send(ctx, title, p.render(snap)); err != nil {
		return fmt.Errorf("send epoch report: %w", err)
	}
	p.logger.Info("epoch report delivered", "epoch", snap.Epoch, "partial", snap.Partial())
	return nil
}

// render lays the report out in its fixed order: the epoch and market price,
// then validator earnings, then wallet balances, then token stats.
func (p *Publisher) render(snap *watch.Snapshot) []notify.Field {
	fields := make([]notify.Field, 0, len(watch.AllMetrics())+len(snap.Balances)+2)

	fields = append(fields,
		notify.Field{Name: "Current Epoch", Value: strconv.FormatUint(snap.Epoch, 10), Inline: true},
		notify.Field{Name: "SOL Price", Value: normalize.FormatUSD(snap.Metric(watch.MetricSOLPrice)), Inline: true},
		solField("Total Stake", snap.Metric(watch.MetricTotalStake)),
		solField("Leader Rewards (Previous Epoch)", snap.Metric(watch.MetricLeaderRewards)),
		solField("Commission Earned (Previous Epoch)", snap.Metric(watch.MetricCommission)),
		solField("Voting Fee", snap.Metric(watch.MetricVotingFee)),
		solField("Previous Epoch Total", snap.Metric(watch.MetricPrevEpochTotal)),
	)

	for _, b := range snap.Balances {
		fields = append(fields, solField(b.Label, b.Amount))
	}
	fields = append(fields, solField("Total Balance", snap.BalanceTotal))

	fields = append(fields,
		notify.Field{Name: p.tokenSymbol + " 24h Volume", Value: normalize.FormatMagnitude(snap.Metric(watch.MetricToken24hVolume)), Inline: true},
		notify.Field{Name: "Holders", Value: normalize.FormatCount(snap.Metric(watch.MetricTokenHolders)), Inline: true},
		notify.Field{Name: "Current Supply", Value: suffixed(normalize.FormatDecimal(snap.Metric(watch.MetricTokenSupply)), p.tokenSymbol), Inline: true},
		notify.Field{Name: "Staking APY", Value: normalize.FormatPercent(snap.Metric(watch.MetricStakingAPY)), Inline: true},
	)
	return fields
}

func solField(name string, v normalize.Value) notify.Field {
	return notify.Field{Name: name, Value: suffixed(normalize.FormatDecimal(v), "SOL"), Inline: true}
}

func suffixed(s, unit string) string {
	if s == normalize.NotAvailable {
		return s
	}
	return s + " " + unit
}
