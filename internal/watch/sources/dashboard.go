package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
	"github.com/stronghold-labs/epochwatch/internal/watch"
)

const defaultDashboardTimeout = 45 * time.Second

// Dashboard scrapes the validator dashboard with headless Chrome. It backs
// up the extract service for the stake and earnings figures when that
// service is down, so it sits behind extract in the merge order.
type Dashboard struct {
	url     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewDashboard(url string, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		url:     url,
		timeout: defaultDashboardTimeout,
		logger:  logger.With("source", "dashboard"),
	}
}

func (d *Dashboard) Name() string { return "dashboard" }

// dashboardAliases maps the dashboard's stat card labels onto canonical
// metrics. Every card renders display currency.
var dashboardAliases = map[string]watch.Metric{
	"SOL Price":          watch.MetricSOLPrice,
	"Total Stake":        watch.MetricTotalStake,
	"Last Epoch Rewards": watch.MetricLeaderRewards,
	"Commission Earned":  watch.MetricCommission,
}

func (d *Dashboard) Fetch(ctx context.Context) watch.SourceResult {
	res := watch.SourceResult{Source: d.Name()}

	stats, err := d.scrape(ctx)
	if err != nil {
		res.Err = watch.AsSourceError(err)
		return res
	}

	res.Fields = mapDashboardStats(stats)
	if len(res.Fields) == 0 {
		res.Err = watch.ParseFailure(fmt.Errorf("no recognizable stat cards on %s", d.url))
	}
	return res
}

// mapDashboardStats keeps the stat cards we track and drops the rest.
func mapDashboardStats(stats map[string]string) map[watch.Metric]watch.Field {
	fields := make(map[watch.Metric]watch.Field, len(stats))
	for label, raw := range stats {
		if m, ok := dashboardAliases[label]; ok {
			fields[m] = watch.Field{Raw: raw, Hint: normalize.HintCurrency}
		}
	}
	return fields
}

// scrape renders the dashboard and pulls the stat cards from the DOM.
func (d *Dashboard) scrape(ctx context.Context) (map[string]string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.Flag("crash-dumps-dir", "/tmp"),
		chromedp.UserDataDir("/tmp/chromedp-profile"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	cctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	cctx, cancel = context.WithTimeout(cctx, d.timeout)
	defer cancel()

	var resultJSON string
	if err := chromedp.Run(cctx,
		chromedp.Navigate(d.url),
		chromedp.WaitVisible(`.stat-card`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(statsJS, &resultJSON),
	); err != nil {
		return nil, watch.ClassifyTransport(fmt.Errorf("chromedp run: %w", err))
	}

	var stats map[string]string
	if err := json.Unmarshal([]byte(resultJSON), &stats); err != nil {
		return nil, watch.ParseFailure(fmt.Errorf("parse dashboard payload: %w", err))
	}

	d.logger.Info("scraped dashboard", "cards", len(stats))
	return stats, nil
}

// statsJS is evaluated in the browser to pull the rendered stat cards.
const statsJS = `
(() => {
	const cards = document.querySelectorAll('.stat-card');
	const stats = {};
	cards.forEach(card => {
		const label = card.querySelector('.stat-label');
		const value = card.querySelector('.stat-value');
		if (!label || !value) return;
		const name = (label.textContent || '').trim();
		const raw = (value.textContent || '').trim();
		if (name && raw) stats[name] = raw;
	});
	return JSON.stringify(stats);
})()
`
