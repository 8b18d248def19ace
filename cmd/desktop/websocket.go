package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
	syncpkg "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/scheduler"
	"github.com/kimhsiao/shopfloor/backend/internal/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin only admits pages served from this machine. Requests without
// an Origin header come from native clients and are allowed.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// =====================================================
// WebSocket Event Types
// =====================================================

const (
	EventSyncStarted    = "sync.started"
	EventSyncCompleted  = "sync.completed"
	EventSyncFailed     = "sync.failed"
	EventSyncItemSynced = "sync.item_synced"
	EventSyncItemFailed = "sync.item_failed"
	EventSyncStatus     = "sync.status"
	EventEntityChanged  = "entity.changed"
)

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

type wsMessage struct {
	eventType string
	payload   []byte
}

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	mu            sync.RWMutex
	subscriptions map[string]bool // empty means every event
}

// wants reports whether the client subscribed to eventType.
func (c *WSClient) wants(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

// WSHub maintains active client connections and broadcasts events.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	log        *logging.Logger
}

// NewWSHub creates a hub and starts its loop.
func NewWSHub(log *logging.Logger) *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan wsMessage, sendBuffer),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        logging.OrNop(log).Named("ws"),
	}
	go hub.run()
	return hub
}

// Close disconnects every client and stops the hub loop.
func (h *WSHub) Close() {
	h.closeOnce.Do(func() { close(h.stop) })
	<-h.done
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", map[string]interface{}{"client_id": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client disconnected", map[string]interface{}{"client_id": client.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for _, client := range h.clients {
				if !client.wants(msg.eventType) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Slow consumer.
					h.log.Warn("client send buffer full, disconnecting", map[string]interface{}{"client_id": client.id})
					h.remove(client)
				}
			}
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for _, client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with h.mu held.
func (h *WSHub) remove(client *WSClient) {
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
}

// Broadcast sends an event to every subscribed client. It drops the event
// once the hub is closed.
func (h *WSHub) Broadcast(eventType string, data interface{}) {
	bytes, err := json.Marshal(WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.log.Error("marshal ws message failed", err, map[string]interface{}{"type": eventType})
		return
	}

	select {
	case h.broadcast <- wsMessage{eventType: eventType, payload: bytes}:
	case <-h.stop:
	}
}

// =====================================================
// Event Broadcasters
// =====================================================

// OnSyncEvent forwards engine events, so the hub can be registered as a
// sync event handler.
func (h *WSHub) OnSyncEvent(e syncpkg.Event) {
	switch e.Type {
	case syncpkg.EventStarted:
		h.Broadcast(EventSyncStarted, map[string]interface{}{"status": "started"})
	case syncpkg.EventCompleted:
		h.Broadcast(EventSyncCompleted, e.Result)
	case syncpkg.EventFailed:
		h.Broadcast(EventSyncFailed, map[string]interface{}{
			"error":  e.Err,
			"result": e.Result,
		})
	case syncpkg.EventItemSynced:
		h.Broadcast(EventSyncItemSynced, map[string]interface{}{
			"entity": string(e.Kind.Entity),
			"action": string(e.Kind.Action),
		})
	case syncpkg.EventItemFailed:
		h.Broadcast(EventSyncItemFailed, map[string]interface{}{
			"entity": string(e.Kind.Entity),
			"action": string(e.Kind.Action),
			"error":  e.Err,
		})
	}
}

// BroadcastStatus notifies clients of a sync status change.
func (h *WSHub) BroadcastStatus(s scheduler.Status) {
	h.Broadcast(EventSyncStatus, s)
}

// BroadcastChange notifies clients that a local record changed.
func (h *WSHub) BroadcastChange(c repository.Change) {
	h.Broadcast(EventEntityChanged, c)
}

// =====================================================
// Client Pumps
// =====================================================

// clientMessage is what clients send to the hub.
type clientMessage struct {
	Action string   `json:"action"` // subscribe, unsubscribe, ping
	Events []string `json:"events"`
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("ws read error", map[string]interface{}{"client_id": c.id, "error": err.Error()})
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Debug("invalid ws message", map[string]interface{}{"client_id": c.id})
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})

		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()

		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply sends a control message to this client only. The hub loop owns
// the send channel, so replies go through it as a targeted write.
func (c *WSClient) reply(body map[string]interface{}) {
	body["timestamp"] = time.Now().Unix()
	bytes, err := json.Marshal(body)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- bytes:
	default:
	}
}

// HandleWebSocket upgrades the request and attaches the client to hub.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("ws upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:            uuid.New(),
			conn:          conn,
			send:          make(chan []byte, sendBuffer),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}

		select {
		case hub.register <- client:
		case <-hub.stop:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
