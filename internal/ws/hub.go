package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients send subscribe/unsubscribe frames
	sendBufferSize = 256              // messages in each client send channel
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint and its channel
// subscriptions (spec §4.F: event:{id}, group:{id}, user:{wallet}).
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte // buffered outbound message queue
	wallet string      // "" = anonymous

	subsMu sync.RWMutex
	subs   map[string]struct{}
}

func (c *Client) subscribe(channel string) {
	c.subsMu.Lock()
	c.subs[channel] = struct{}{}
	c.subsMu.Unlock()
}

func (c *Client) unsubscribe(channel string) {
	c.subsMu.Lock()
	delete(c.subs, channel)
	c.subsMu.Unlock()
}

func (c *Client) isSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	_, ok := c.subs[channel]
	return ok
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// channelMessage pairs a channel name with its already-marshalled payload.
type channelMessage struct {
	channel string
	data    []byte
}

// Hub maintains the set of active clients and routes channel-scoped
// broadcast messages. Run() must be called in a dedicated goroutine before
// ServeWs is used. Implements service.Broadcaster and
// service.SettlementBroadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan channelMessage
	register   chan *Client
	unregister chan *Client

	log *slog.Logger

	// upgrader is safe for concurrent use after construction.
	upgrader websocket.Upgrader
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan channelMessage, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run — hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration, and broadcast events
// sequentially. Call it once as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.isSubscribed(msg.channel) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client's buffer full — drop for this client; the
					// writePump will detect a stalled connection separately.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConnectedCount returns the current number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs — HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket connection. wallet, if
// non-empty, scopes the implicit user:{wallet} channel the client is
// auto-subscribed to; internal/api passes the ?wallet= query parameter
// as-is, and no signature check is made on it here or upstream.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, wallet string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws: upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		wallet: wallet,
		subs:   make(map[string]struct{}),
	}
	if wallet != "" {
		client.subscribe(UserChannel(wallet))
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection. It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the WebSocket connection and parses
// {type: "subscribe"|"unsubscribe", channel} envelopes per spec §6's
// streaming-channel contract. Any other payload is answered with an
// ErrorMessage. When the connection drops the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("ws: unexpected close", "wallet", c.wallet, "error", err)
			}
			return
		}

		var env subscriptionEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.hub.SendError(c, "bad_request", "malformed subscription envelope")
			continue
		}
		switch env.Type {
		case MsgTypeSubscribe:
			c.subscribe(env.Channel)
			c.hub.sendJSON(c, subscribedAck{Type: MsgTypeSubscribeAck, Channel: env.Channel})
		case MsgTypeUnsubscribe:
			c.unsubscribe(env.Channel)
		default:
			c.hub.SendError(c, "bad_request", "unknown message type")
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast helpers — implement service.Broadcaster and
// service.SettlementBroadcaster.
// ──────────────────────────────────────────────────────────────────────────────

// PublishPriceUpdate satisfies service.Broadcaster.
func (h *Hub) PublishPriceUpdate(eventID uuid.UUID, prices map[string]decimal.Decimal, volume decimal.Decimal) {
	h.publish(EventChannel(eventID), PriceUpdateMessage{
		Type: MsgTypePriceUpdate, EventID: eventID,
		Prices: prices, Volume: volume, Timestamp: time.Now().UTC(),
	})
}

// PublishBetExecuted satisfies service.Broadcaster.
func (h *Hub) PublishBetExecuted(eventID uuid.UUID, bet *domain.Bet) {
	h.publish(EventChannel(eventID), BetExecutedMessage{
		Type: MsgTypeBetExecuted, EventID: eventID, BetID: bet.ID,
		Outcome: bet.Outcome, Shares: bet.Shares, FillPrice: bet.Price,
		AmountUSDC: bet.AmountUSDC, Timestamp: time.Now().UTC(),
	})
}

// PublishEventSettled satisfies service.SettlementBroadcaster.
func (h *Hub) PublishEventSettled(eventID uuid.UUID, winner string) {
	h.publish(EventChannel(eventID), EventSettledMessage{
		Type: MsgTypeEventSettled, EventID: eventID, Winner: winner, Timestamp: time.Now().UTC(),
	})
}

func (h *Hub) publish(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("ws: marshal error", "error", err)
		return
	}
	select {
	case h.broadcast <- channelMessage{channel: channel, data: data}:
	default:
		h.log.Warn("ws: broadcast channel full, message dropped", "channel", channel)
	}
}

// sendJSON writes one JSON-encoded message directly to a single client.
func (h *Hub) sendJSON(client *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// SendError writes an error message directly to one client's send channel.
func (h *Hub) SendError(client *Client, code, message string) {
	h.sendJSON(client, ErrorMessage{Type: MsgTypeError, Code: code, Message: message})
}
