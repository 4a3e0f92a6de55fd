package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/stronghold-labs/epochwatch/internal/watch"
)

const (
	defaultRPCTimeout = 10 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	defaultMaxDelay   = 4 * time.Second
)

// RPCClient reads the chain's epoch counter over HTTP JSON-RPC 2.0.
type RPCClient struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	requestID  atomic.Uint64
}

// RPCOption configures RPCClient.
type RPCOption func(*RPCClient)

// WithRPCHTTPClient sets a custom http.Client.
func WithRPCHTTPClient(client *http.Client) RPCOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// WithRPCMaxRetries sets maximum retry attempts.
func WithRPCMaxRetries(n int) RPCOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRPCRetryDelay sets the initial retry delay.
func WithRPCRetryDelay(d time.Duration) RPCOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// NewRPCClient creates a JSON-RPC client for the given node endpoint.
func NewRPCClient(endpoint string, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: defaultRPCTimeout},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type epochInfo struct {
	Epoch        uint64 `json:"epoch"`
	SlotIndex    uint64 `json:"slotIndex"`
	SlotsInEpoch uint64 `json:"slotsInEpoch"`
	AbsoluteSlot uint64 `json:"absoluteSlot"`
}

// CurrentEpoch calls getEpochInfo and returns the node's epoch counter. The
// returned error is always a *watch.SourceError.
func (c *RPCClient) CurrentEpoch(ctx context.Context) (uint64, error) {
	var info epochInfo
	if err := c.call(ctx, "getEpochInfo", nil, &info); err != nil {
		return 0, err
	}
	return info.Epoch, nil
}

// call performs one JSON-RPC call, retrying transport failures and 429/5xx
// answers with exponential backoff. Application-level errors — a JSON-RPC
// error object, a malformed body, or a non-retryable status — are final.
func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.requestID.Add(1), Method: method, Params: params})
	if err != nil {
		return watch.ParseFailure(fmt.Errorf("marshal request: %w", err))
	}

	delay := c.retryDelay
	var lastErr *watch.SourceError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return watch.ClassifyTransport(ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return watch.Unreachable(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = watch.ClassifyTransport(err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = watch.ClassifyTransport(err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = watch.HTTPFailure(resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return watch.HTTPFailure(resp.StatusCode)
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return watch.ParseFailure(fmt.Errorf("unmarshal response: %w", err))
		}
		if rpcResp.Error != nil {
			return watch.ParseFailure(rpcResp.Error)
		}
		if result != nil {
			if rpcResp.Result == nil {
				return watch.ParseFailure(errors.New("response carries no result"))
			}
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return watch.ParseFailure(fmt.Errorf("unmarshal result: %w", err))
			}
		}
		return nil
	}

	return lastErr
}
