package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"resty.dev/v3"

	"github.com/stronghold-labs/epochwatch/internal/normalize"
	"github.com/stronghold-labs/epochwatch/internal/watch"
)

const (
	defaultAPYTimeout       = 15 * time.Second
	defaultAPYRetryCount    = 2
	defaultAPYRetryWaitTime = 500 * time.Millisecond
	defaultAPYRetryMaxWait  = 5 * time.Second
)

// APYClient reads the staking pool APY feed. The feed quotes fractions of
// one keyed by pool mint address.
type APYClient struct {
	client *resty.Client
	mint   string
	logger *slog.Logger
}

// NewAPYClient creates a client for the APY feed tracking the given pool
// mint.
func NewAPYClient(baseURL, mint string, logger *slog.Logger) *APYClient {
	log := logger.With("source", "apy")
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(defaultAPYTimeout).
		SetRetryCount(defaultAPYRetryCount).
		SetRetryWaitTime(defaultAPYRetryWaitTime).
		SetRetryMaxWaitTime(defaultAPYRetryMaxWait).
		AddRetryConditions(apyRetryCondition).
		AddRetryHooks(func(r *resty.Response, err error) {
			log.Debug("retrying APY request", "attempt", r.Request.Attempt, "error", err)
		})

	return &APYClient{client: client, mint: mint, logger: log}
}

// apyRetryCondition retries network errors and transient statuses; client
// errors are final.
func apyRetryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

func (c *APYClient) Name() string { return "apy" }

type apyResponse struct {
	APYs map[string]json.Number `json:"apys"`
}

// Fetch reads the feed and extracts the tracked pool's APY. A response that
// no longer carries the mint is a parse failure, not an auth one.
func (c *APYClient) Fetch(ctx context.Context) watch.SourceResult {
	res := watch.SourceResult{Source: c.Name()}

	var body apyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/v1/apys")
	if err != nil {
		res.Err = watch.ClassifyTransport(err)
		return res
	}
	if !resp.IsSuccess() {
		res.Err = watch.HTTPFailure(resp.StatusCode())
		return res
	}

	apy, ok := body.APYs[c.mint]
	if !ok {
		res.Err = watch.ParseFailure(fmt.Errorf("feed does not track mint %s", c.mint))
		return res
	}

	res.Fields = map[watch.Metric]watch.Field{
		watch.MetricStakingAPY: {Raw: apy.String(), Hint: normalize.HintPercentFraction},
	}
	return res
}
