// Package stream subscribes to marketplace collection events over a
// websocket and republishes them on an events.Bus.
package stream

import (
	"context"
	"encoding/json"
	"math/big"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kaifufi/wyvern-sdk-go/events"
)

const (
	MainnetEndpoint = "wss://stream.openseabeta.com/socket/websocket"
	TestnetEndpoint = "wss://testnets-stream.openseabeta.com/socket/websocket"

	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 10

	// AllCollections subscribes to every collection.
	AllCollections = "*"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventHeartbeat = "heartbeat"
	heartbeatTopic = "phoenix"
)

var ErrNotConnected = errors.New("stream not connected")

// message is the envelope of every frame in both directions.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// Config configures a Client. Zero values take the defaults above.
type Config struct {
	Endpoint             string
	APIKey               string
	HeartbeatInterval    time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	Logger               logrus.FieldLogger
	Dialer               *websocket.Dialer
}

// Client keeps a websocket open, renews it when it drops, and restores the
// collection subscriptions on every new connection.
type Client struct {
	cfg Config
	bus *events.Bus
	log logrus.FieldLogger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc

	writeMu sync.Mutex

	subMu         sync.RWMutex
	subscriptions map[string]struct{}
}

// New creates a Client that publishes item events on bus.
func New(cfg Config, bus *events.Bus) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = MainnetEndpoint
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		cfg:           cfg,
		bus:           bus,
		log:           log.WithField("component", "stream"),
		subscriptions: make(map[string]struct{}),
	}
}

// Connect opens the websocket. The connection, and any reconnection, lives
// until ctx is done or Close is called.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.ctx == nil || c.ctx.Err() != nil {
		c.ctx, c.cancel = context.WithCancel(ctx)
	}
	return c.dialLocked()
}

func (c *Client) dialLocked() error {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return errors.Wrap(err, "parse stream endpoint")
	}
	q := u.Query()
	if c.cfg.APIKey != "" {
		q.Set("token", c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()

	conn, _, err := c.cfg.Dialer.DialContext(c.ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "connect to stream")
	}
	c.conn = conn
	c.connected = true

	ctx := c.ctx
	done := make(chan struct{})
	go c.heartbeat(ctx, conn, done)
	go c.readLoop(ctx, conn, done)
	c.log.WithField("endpoint", c.cfg.Endpoint).Info("stream connected")
	return nil
}

// Close stops reconnection and closes the websocket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	c.connected = false

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// IsConnected reports whether a websocket is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func topic(slug string) string {
	return "collection:" + slug
}

// Subscribe joins the event channel of a collection. It is restored after
// every reconnect until Unsubscribe.
func (c *Client) Subscribe(slug string) error {
	if err := c.send(message{Topic: topic(slug), Event: eventJoin}); err != nil {
		return err
	}
	c.subMu.Lock()
	c.subscriptions[slug] = struct{}{}
	c.subMu.Unlock()
	return nil
}

// Unsubscribe leaves the event channel of a collection.
func (c *Client) Unsubscribe(slug string) error {
	c.subMu.Lock()
	delete(c.subscriptions, slug)
	c.subMu.Unlock()
	return c.send(message{Topic: topic(slug), Event: eventLeave})
}

// Subscriptions returns the subscribed collection slugs in order.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.subscriptions))
	for slug := range c.subscriptions {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

func (c *Client) send(msg message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if msg.Payload == nil {
		msg.Payload = json.RawMessage("{}")
	}
	if msg.Ref == "" {
		msg.Ref = uuid.NewString()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return errors.Wrapf(err, "send %s %s", msg.Event, msg.Topic)
	}
	return nil
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.send(message{Topic: heartbeatTopic, Event: eventHeartbeat}); err != nil {
				c.log.WithError(err).Warn("heartbeat failed")
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("stream read failed")
			}
			c.handleDisconnect(ctx, conn)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) handleDisconnect(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// Closed deliberately, or already replaced.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	_ = conn.Close()
	c.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	go c.reconnect(ctx)
}

func (c *Client) reconnect(ctx context.Context) {
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectInterval):
		}

		c.mu.Lock()
		err := ctx.Err()
		if err == nil && !c.connected {
			err = c.dialLocked()
		}
		c.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.WithError(err).WithField("attempt", attempt).Warn("stream reconnect failed")
			continue
		}
		c.resubscribe()
		return
	}
	c.log.WithField("attempts", c.cfg.MaxReconnectAttempts).Error("stream reconnect attempts exhausted")
}

func (c *Client) resubscribe() {
	for _, slug := range c.Subscriptions() {
		if err := c.send(message{Topic: topic(slug), Event: eventJoin}); err != nil {
			c.log.WithError(err).WithField("collection", slug).Warn("resubscribe failed")
		}
	}
}

type itemPayload struct {
	EventType string `json:"event_type"`
	Payload   struct {
		Collection struct {
			Slug string `json:"slug"`
		} `json:"collection"`
		Item struct {
			NftID    string `json:"nft_id"`
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
		} `json:"item"`
	} `json:"payload"`
}

func (c *Client) dispatch(msg message) {
	var build func(events.ItemEvent) events.Event
	switch msg.Event {
	case "item_listed":
		build = func(e events.ItemEvent) events.Event { return events.ItemListedEvent{ItemEvent: e} }
	case "item_sold":
		build = func(e events.ItemEvent) events.Event { return events.ItemSoldEvent{ItemEvent: e} }
	case "item_transferred":
		build = func(e events.ItemEvent) events.Event { return events.ItemTransferredEvent{ItemEvent: e} }
	case "item_received_bid":
		build = func(e events.ItemEvent) events.Event { return events.ItemReceivedBidEvent{ItemEvent: e} }
	case "item_cancelled":
		build = func(e events.ItemEvent) events.Event { return events.ItemCancelledEvent{ItemEvent: e} }
	default:
		c.log.WithFields(logrus.Fields{"topic": msg.Topic, "event": msg.Event}).Debug("ignored stream message")
		return
	}

	item, err := parseItem(msg.Payload)
	if err != nil {
		c.log.WithError(err).WithField("event", msg.Event).Warn("malformed stream payload")
		return
	}
	c.bus.Dispatch(build(item))
}

// parseItem decodes an item payload. nft_id has the form
// chain/contract/token_id.
func parseItem(raw json.RawMessage) (events.ItemEvent, error) {
	var p itemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return events.ItemEvent{}, errors.Wrap(err, "decode item payload")
	}
	e := events.ItemEvent{
		CollectionSlug: p.Payload.Collection.Slug,
		ItemName:       p.Payload.Item.Metadata.Name,
		Raw:            append([]byte(nil), raw...),
	}
	parts := strings.Split(p.Payload.Item.NftID, "/")
	if len(parts) != 3 {
		return e, errors.Errorf("invalid nft_id %q", p.Payload.Item.NftID)
	}
	if !common.IsHexAddress(parts[1]) {
		return e, errors.Errorf("invalid contract in nft_id %q", p.Payload.Item.NftID)
	}
	id, ok := new(big.Int).SetString(parts[2], 10)
	if !ok {
		return e, errors.Errorf("invalid token id in nft_id %q", p.Payload.Item.NftID)
	}
	e.TokenAddress = common.HexToAddress(parts[1])
	e.TokenID = id
	return e, nil
}
