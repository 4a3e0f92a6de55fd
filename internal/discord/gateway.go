package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const (
	gatewayURL    = "wss://gateway.discord.gg/?v=10&encoding=json"
	reconnectBase = 2 * time.Second
	reconnectMax  = 60 * time.Second
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// Gateway keeps the bot's gateway session alive so the account presents
// online. It speaks hello/identify/heartbeat only; dispatched events are
// read and discarded.
type Gateway struct {
	token  string
	url    string
	logger *slog.Logger
}

func NewGateway(token string, logger *slog.Logger) *Gateway {
	return &Gateway{
		token:  token,
		url:    gatewayURL,
		logger: logger.With("component", "gateway"),
	}
}

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// Run maintains the connection until ctx is cancelled, reconnecting with
// exponential backoff.
func (g *Gateway) Run(ctx context.Context) {
	g.logger.Info("gateway keepalive starting")

	backoff := reconnectBase
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := g.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}

		g.logger.Warn("gateway disconnected, reconnecting...", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = time.Duration(math.Min(float64(backoff*2), float64(reconnectMax)))
	}
}

func (g *Gateway) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck

	hello, err := g.read(ctx, conn)
	if err != nil {
		return err
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var d struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &d); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}
	if d.HeartbeatInterval <= 0 {
		return fmt.Errorf("unusable heartbeat interval %d", d.HeartbeatInterval)
	}

	if err := g.identify(ctx, conn); err != nil {
		return err
	}

	g.logger.Info("gateway connected", "heartbeat_ms", d.HeartbeatInterval)

	var seq atomic.Int64
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go func() {
		ticker := time.NewTicker(time.Duration(d.HeartbeatInterval) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := g.sendHeartbeat(hbCtx, conn, &seq); err != nil {
					g.logger.Warn("heartbeat failed", "error", err)
					conn.CloseNow() //nolint:errcheck
					return
				}
			}
		}
	}()

	for {
		payload, err := g.read(ctx, conn)
		if err != nil {
			return err
		}
		if payload.S != nil {
			seq.Store(*payload.S)
		}

		switch payload.Op {
		case opHeartbeat:
			// the server may ask for an immediate beat
			if err := g.sendHeartbeat(ctx, conn, &seq); err != nil {
				return err
			}
		case opReconnect, opInvalidSession:
			return fmt.Errorf("server requested reconnect (op %d)", payload.Op)
		case opDispatch, opHeartbeatACK:
		}
	}
}

func (g *Gateway) identify(ctx context.Context, conn *websocket.Conn) error {
	return g.write(ctx, conn, map[string]interface{}{
		"op": opIdentify,
		"d": map[string]interface{}{
			"token":   g.token,
			"intents": 0,
			"properties": map[string]string{
				"os":      runtime.GOOS,
				"browser": "epochwatch",
				"device":  "epochwatch",
			},
		},
	})
}

func (g *Gateway) sendHeartbeat(ctx context.Context, conn *websocket.Conn, seq *atomic.Int64) error {
	var last interface{}
	if s := seq.Load(); s > 0 {
		last = s
	}
	return g.write(ctx, conn, map[string]interface{}{"op": opHeartbeat, "d": last})
}

func (g *Gateway) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (g *Gateway) read(ctx context.Context, conn *websocket.Conn) (*gatewayPayload, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway read: %w", err)
	}
	var p gatewayPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &p, nil
}
