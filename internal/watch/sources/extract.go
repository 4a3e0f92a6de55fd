package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
	"github.com/stronghold-labs/epochwatch/internal/watch"
)

// The extract service scrapes the validator dashboard server-side, so a
// single call can take the better part of a minute and the account quota is
// tight. One request per minute keeps a manual-report burst inside it.
const (
	defaultExtractTimeout = 60 * time.Second
	defaultExtractRate    = rate.Limit(1.0 / 60.0)
)

// extractAliases maps the extract service's display names onto canonical
// metrics. Each alias carries the hint for its display convention: currency
// strings with $ and separators, compact magnitudes like "$3.1K", bare
// integer counts, and percentages quoted out of 100.
var extractAliases = map[string]struct {
	metric watch.Metric
	hint   normalize.Hint
}{
	"sol_price ($)":             {watch.MetricSOLPrice, normalize.HintCurrency},
	"current_stake":             {watch.MetricTotalStake, normalize.HintCurrency},
	"last_epoch_rewards":        {watch.MetricLeaderRewards, normalize.HintCurrency},
	"commission_earned":         {watch.MetricCommission, normalize.HintCurrency},
	"voting_fee":                {watch.MetricVotingFee, normalize.HintCurrency},
	"last_epoch_total_earnings": {watch.MetricPrevEpochTotal, normalize.HintCurrency},
	"Current Supply":            {watch.MetricTokenSupply, normalize.HintCurrency},
	"Holders":                   {watch.MetricTokenHolders, normalize.HintCount},
	"StrongSOL 24hr Volume ($)": {watch.MetricToken24hVolume, normalize.HintMagnitude},
	"Last Epoch's APY":          {watch.MetricStakingAPY, normalize.HintPercentDisplay},
}

// ExtractClient pulls the validator metrics bundle from the extract service.
type ExtractClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ExtractOption configures ExtractClient.
type ExtractOption func(*ExtractClient)

// WithExtractTimeout overrides the per-request timeout.
func WithExtractTimeout(d time.Duration) ExtractOption {
	return func(c *ExtractClient) {
		c.client.SetTimeout(d)
	}
}

// WithExtractLimiter overrides the request quota limiter.
func WithExtractLimiter(l *rate.Limiter) ExtractOption {
	return func(c *ExtractClient) {
		c.limiter = l
	}
}

// NewExtractClient creates a client for the extract service. The token is
// sent as a bearer credential on every request.
func NewExtractClient(baseURL, token string, logger *slog.Logger, opts ...ExtractOption) *ExtractClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetTimeout(defaultExtractTimeout)

	c := &ExtractClient{
		client:  client,
		limiter: rate.NewLimiter(defaultExtractRate, 1),
		logger:  logger.With("source", "extract"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ExtractClient) Name() string { return "extract" }

type extractResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Metrics map[string]string `json:"metrics"`
}

// Fetch pulls one metrics bundle. Aliases the service added that we do not
// track are skipped; tracked aliases the service dropped simply stay absent
// and resolve to Unknown downstream.
func (c *ExtractClient) Fetch(ctx context.Context) watch.SourceResult {
	res := watch.SourceResult{Source: c.Name()}

	if err := c.limiter.Wait(ctx); err != nil {
		res.Err = watch.ClassifyTransport(err)
		return res
	}

	var body extractResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/api/metrics")
	if err != nil {
		res.Err = watch.ClassifyTransport(err)
		return res
	}
	if !resp.IsSuccess() {
		res.Err = watch.HTTPFailure(resp.StatusCode())
		return res
	}
	if !body.Success {
		res.Err = watch.ParseFailure(fmt.Errorf("extract reported failure: %s", body.Error))
		return res
	}

	res.Fields = make(map[watch.Metric]watch.Field, len(body.Metrics))
	for alias, raw := range body.Metrics {
		target, ok := extractAliases[alias]
		if !ok {
			c.logger.Debug("ignoring unknown metric alias", "alias", alias)
			continue
		}
		res.Fields[target.metric] = watch.Field{Raw: raw, Hint: target.hint}
	}
	return res
}
