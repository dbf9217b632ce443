package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/update"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64
)

// Event channels clients can subscribe to.
const (
	ChannelReport = "catalog.report"
	ChannelSource = "catalog.source"
)

var knownChannels = map[string]bool{ChannelReport: true, ChannelSource: true}

// SourceEvent is the payload broadcast on ChannelSource.
type SourceEvent struct {
	ReportID string              `json:"report_id"`
	Source   string              `json:"source"`
	Result   update.SourceResult `json:"result"`
}

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
//
// Sources narrows ChannelSource events to the listed source ids. It
// accumulates across subscribe messages; an empty list leaves it unchanged.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Sources  []string `json:"sources,omitempty"`
}

// Hub fans update reports out to WebSocket clients. The most recent
// report is kept so late subscribers to ChannelReport see it at once.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu         sync.RWMutex
	clients    map[*WSClient]struct{}
	lastReport []byte
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	// mu guards everything below. send is only written or closed under it.
	mu       sync.RWMutex
	send     chan []byte
	closed   bool
	channels map[string]struct{}
	sources  map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		c.conn.Close() //nolint:errcheck,gosec // shutting down
	}
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}
	h.deliver(channel, "", data)
}

// deliver sends data to subscribers of channel. A non-empty source skips
// clients whose source filter excludes it.
func (h *Hub) deliver(channel, source string, data []byte) {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.wants(channel, source) && c.trySend(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sent)
	}
}

// NotifyReport implements update.Notifier. The full report goes to
// ChannelReport, then one SourceEvent per source in sorted order.
func (h *Hub) NotifyReport(_ context.Context, r *update.Report) error {
	data, err := encodeEvent(ChannelReport, r)
	if err != nil {
		return fmt.Errorf("encoding report event: %w", err)
	}
	h.mu.Lock()
	h.lastReport = data
	h.mu.Unlock()
	h.deliver(ChannelReport, "", data)

	ids := make([]string, 0, len(r.Sources))
	for id := range r.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ev, err := encodeEvent(ChannelSource, SourceEvent{ReportID: r.ID, Source: id, Result: r.Sources[id]})
		if err != nil {
			return fmt.Errorf("encoding source event %s: %w", id, err)
		}
		h.deliver(ChannelSource, id, ev)
	}
	return nil
}

func (h *Hub) latestReport() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReport
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// The catalog is public data, so connections are not authenticated.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeUnavailable(w, "event hub not running")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
	s.hub.register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages until the connection fails, then unregisters.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close() //nolint:errcheck,gosec // connection already failing
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error {
		if idle <= 0 {
			return nil
		}
		return c.conn.SetReadDeadline(time.Now().Add(idle))
	}
	extend() //nolint:errcheck,gosec // best effort
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Any client message counts as liveness.
		extend() //nolint:errcheck,gosec // best effort
		c.handleMessage(message)
	}
}

// writePump drains the send channel and keeps the connection alive with pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck,gosec // writer exiting
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // write error caught below
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck,gosec // best effort
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // ping error caught below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type    string             `json:"type"`
		ID      string             `json:"id"`
		Payload WSSubscribePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	case WSTypeSubscribe:
		c.subscribe(msg.ID, msg.Payload)
	case WSTypeUnsubscribe:
		c.unsubscribe(msg.ID, msg.Payload)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (c *WSClient) subscribe(id string, p WSSubscribePayload) {
	for _, ch := range p.Channels {
		if !knownChannels[ch] {
			c.reply(id, WSTypeError, map[string]string{"message": "unknown channel: " + ch})
			return
		}
	}

	replay := false
	c.mu.Lock()
	for _, ch := range p.Channels {
		if _, ok := c.channels[ch]; !ok && ch == ChannelReport {
			replay = true
		}
		c.channels[ch] = struct{}{}
	}
	if len(p.Sources) > 0 {
		if c.sources == nil {
			c.sources = make(map[string]struct{}, len(p.Sources))
		}
		for _, src := range p.Sources {
			c.sources[src] = struct{}{}
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", p.Channels, "sources", p.Sources)
	c.reply(id, WSTypeResponse, map[string]any{"subscribed": p.Channels})

	if replay {
		if last := c.hub.latestReport(); last != nil {
			c.trySend(last)
		}
	}
}

func (c *WSClient) unsubscribe(id string, p WSSubscribePayload) {
	c.mu.Lock()
	for _, ch := range p.Channels {
		delete(c.channels, ch)
	}
	for _, src := range p.Sources {
		delete(c.sources, src)
	}
	if len(c.sources) == 0 {
		c.sources = nil
	}
	c.mu.Unlock()

	c.reply(id, WSTypeResponse, map[string]any{"unsubscribed": p.Channels})
}

// wants reports whether the client subscribed to channel and, for source
// events, whether its filter admits source.
func (c *WSClient) wants(channel, source string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.channels[channel]; !ok {
		return false
	}
	if source == "" || c.sources == nil {
		return true
	}
	_, ok := c.sources[source]
	return ok
}

// trySend queues data without blocking. Slow clients drop messages.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}
