// Package discordgw maintains a bot websocket to the Discord gateway and
// hands dispatched events to the polling triggers, alongside a small REST
// client for the message reactions.
package discordgw

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/pkg/logger"
)

// DefaultGatewayURL is the v10 JSON gateway endpoint.
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

const (
	opDispatch  = 0
	opHeartbeat = 1
	opIdentify  = 2
	opHello     = 10

	// All standard intents plus MESSAGE_CONTENT, so message events carry
	// their text.
	gatewayIntents = 32767 | (1 << 15)

	eventBuffer = 256
	dedupSize   = 1024
)

// EventTypes lists the dispatch types the gateway buffers. Polling any other
// type is a configuration error.
var EventTypes = []string{
	"MESSAGE_CREATE",
	"MESSAGE_UPDATE",
	"MESSAGE_DELETE",
	"CHANNEL_CREATE",
	"CHANNEL_UPDATE",
	"CHANNEL_DELETE",
	"GUILD_ROLE_CREATE",
	"GUILD_MEMBER_ADD",
	"GUILD_MEMBER_REMOVE",
	"GUILD_UPDATE",
}

type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Event is one dispatched gateway event.
type Event struct {
	Type string
	Data map[string]any
}

// Gateway owns one websocket session for a bot token. The connection is
// dialed lazily on the first Poll and redialed on the next Poll after a read
// failure. Dispatch events are fanned out to per-type buffers; when a buffer
// is full the newest event is dropped.
type Gateway struct {
	token string
	url   string

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool

	seq    atomic.Int64
	queues map[string]chan Event
	seen   *lru.Cache[string, struct{}]
}

// NewGateway builds a gateway for one bot token. Nothing is dialed until the
// first Poll.
func NewGateway(token string) (*Gateway, error) {
	return NewGatewayWithURL(token, DefaultGatewayURL)
}

func NewGatewayWithURL(token, gatewayURL string) (*Gateway, error) {
	seen, err := lru.New[string, struct{}](dedupSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway dedup cache: %w", err)
	}
	queues := make(map[string]chan Event, len(EventTypes))
	for _, t := range EventTypes {
		queues[t] = make(chan Event, eventBuffer)
	}
	return &Gateway{token: token, url: gatewayURL, queues: queues, seen: seen}, nil
}

// Poll drains the buffer for one event type and returns the first event the
// filter accepts, or nil when the buffer holds no match. It never blocks
// waiting for the gateway.
func (g *Gateway) Poll(ctx context.Context, eventType string, match func(map[string]any) bool) (map[string]any, error) {
	queue, ok := g.queues[eventType]
	if !ok {
		return nil, fmt.Errorf("unsupported gateway event type %q: %w", eventType, core.ErrInvalidConfig)
	}
	if err := g.ensure(ctx); err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case evt := <-queue:
			if match == nil || match(evt.Data) {
				return evt.Data, nil
			}
		default:
			return nil, nil
		}
	}
}

// Close tears the session down. The gateway cannot be reused afterwards.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

func (g *Gateway) ensure(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("discord gateway is closed")
	}
	if g.conn != nil {
		return nil
	}
	return g.dialLocked(ctx)
}

// dialLocked performs the HELLO/IDENTIFY handshake and starts the reader and
// heartbeat goroutines for the new connection. Callers hold g.mu.
func (g *Gateway) dialLocked(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial discord gateway: %v: %w", err, core.ErrUpstreamTransient)
	}
	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("failed to read gateway hello: %v: %w", err, core.ErrUpstreamTransient)
	}
	if hello.Op != opHello {
		conn.Close()
		return fmt.Errorf("gateway sent op %d before hello: %w", hello.Op, core.ErrUpstreamTransient)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		conn.Close()
		return fmt.Errorf("failed to decode gateway hello: %v: %w", err, core.ErrUpstreamTransient)
	}
	identify, err := json.Marshal(identifyData{
		Token:   g.token,
		Intents: gatewayIntents,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "hookline",
			Device:  "hookline",
		},
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to encode identify payload: %w", err)
	}
	if err := conn.WriteJSON(payload{Op: opIdentify, D: identify}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send identify: %v: %w", err, core.ErrUpstreamTransient)
	}
	runCtx, cancel := context.WithCancel(
		logger.ContextWithLogger(context.Background(), logger.FromContext(ctx)),
	)
	g.conn = conn
	g.cancel = cancel
	go g.readLoop(runCtx, conn)
	go g.heartbeat(runCtx, conn, time.Duration(hd.HeartbeatInterval)*time.Millisecond)
	return nil
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn) {
	log := logger.FromContext(ctx)
	for {
		var msg payload
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.Warn("discord gateway read failed, dropping connection", "error", err)
			}
			g.drop(conn)
			return
		}
		if msg.S != nil {
			g.seq.Store(*msg.S)
		}
		if msg.Op != opDispatch || msg.T == "" {
			continue
		}
		queue, ok := g.queues[msg.T]
		if !ok {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(msg.D, &data); err != nil {
			log.Debug("discarding undecodable gateway event", "type", msg.T, "error", err)
			continue
		}
		if id, ok := data["id"].(string); ok && id != "" {
			if found, _ := g.seen.ContainsOrAdd(msg.T+":"+id, struct{}{}); found {
				continue
			}
		}
		select {
		case queue <- Event{Type: msg.T, Data: data}:
		default:
			log.Warn("gateway event buffer full, dropping event", "type", msg.T)
		}
	}
}

// heartbeat acks the interval negotiated in HELLO. Discord expects the last
// seen sequence number, or null before the first dispatch.
func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(g.heartbeatPayload()); err != nil {
				if ctx.Err() == nil {
					logger.FromContext(ctx).Warn("discord heartbeat failed, dropping connection", "error", err)
				}
				g.drop(conn)
				return
			}
		}
	}
}

func (g *Gateway) heartbeatPayload() payload {
	if seq := g.seq.Load(); seq > 0 {
		d, _ := json.Marshal(seq)
		return payload{Op: opHeartbeat, D: d}
	}
	return payload{Op: opHeartbeat, D: json.RawMessage("null")}
}

// drop closes a failed connection and clears it so the next Poll redials.
// A connection replaced by a newer dial is closed without touching state.
func (g *Gateway) drop(conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	conn.Close()
	if g.conn != conn {
		return
	}
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.conn = nil
}
