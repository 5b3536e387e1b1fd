package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/backup"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/uuid"
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

// localOrigin accepts clients without an Origin header and browsers on localhost.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// =====================================================
// WebSocket Event Types
// =====================================================

const (
	WSBackupStarted         = "backup.started"
	WSBackupProgress        = "backup.progress"
	WSBackupCompleted       = "backup.completed"
	WSBackupFailed          = "backup.failed"
	WSBackupDeleted         = "backup.deleted"
	WSBackupScheduled       = "backup.scheduled"
	WSScheduledBackupFailed = "backup.scheduled_failed"
	WSOldBackupsCleaned     = "backup.old_cleaned"
	WSRestoreStarted        = "restore.started"
	WSRestoreProgress       = "restore.progress"
	WSRestoreCompleted      = "restore.completed"
	WSRestoreFailed         = "restore.failed"
)

var envelopeTypes = map[backup.EventType]string{
	backup.EventBackupStarted:         WSBackupStarted,
	backup.EventBackupProgress:        WSBackupProgress,
	backup.EventBackupCompleted:       WSBackupCompleted,
	backup.EventBackupFailed:          WSBackupFailed,
	backup.EventBackupDeleted:         WSBackupDeleted,
	backup.EventBackupScheduled:       WSBackupScheduled,
	backup.EventScheduledBackupFailed: WSScheduledBackupFailed,
	backup.EventOldBackupsCleaned:     WSOldBackupsCleaned,
	backup.EventRestoreStarted:        WSRestoreStarted,
	backup.EventRestoreProgress:       WSRestoreProgress,
	backup.EventRestoreCompleted:      WSRestoreCompleted,
	backup.EventRestoreFailed:         WSRestoreFailed,
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string       `json:"type"`
	Data      backup.Event `json:"data"`
	Timestamp int64        `json:"timestamp"`
}

type outbound struct {
	kind    string
	payload []byte
}

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	mu            sync.RWMutex
	subscriptions map[string]bool
}

// wants reports whether the client receives messages of kind. A client
// without subscriptions receives everything.
func (c *WSClient) wants(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[kind]
}

func (c *WSClient) setSubscribed(events []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		if on {
			c.subscriptions[e] = true
		} else {
			delete(c.subscriptions, e)
		}
	}
}

// WSHub maintains active client connections and broadcasts backup events.
// It is a backup.Observer.
type WSHub struct {
	logger     *zap.Logger
	clients    map[string]*WSClient
	broadcast  chan outbound
	unregister chan *WSClient
	quit       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

// NewWSHub creates a hub and starts its loop.
func NewWSHub(logger *zap.Logger) *WSHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &WSHub{
		logger:     logger.Named("ws"),
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan outbound, sendBuffer),
		unregister: make(chan *WSClient),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*WSClient
			for _, client := range h.clients {
				if !client.wants(msg.kind) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.logger.Warn("dropping slow client", zap.String("client", client.id))
				h.drop(client)
			}

		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// add registers a client. It fails once the hub is closed.
func (h *WSHub) add(client *WSClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.quit:
		return false
	default:
	}
	h.clients[client.id] = client
	h.logger.Debug("client connected", zap.String("client", client.id), zap.Int("total", len(h.clients)))
	return true
}

func (h *WSHub) drop(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
		h.logger.Debug("client disconnected", zap.String("client", client.id), zap.Int("total", len(h.clients)))
	}
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops the hub.
func (h *WSHub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done
}

// OnEvent broadcasts a backup event. Events are dropped rather than
// blocking the backup when the hub is backed up.
func (h *WSHub) OnEvent(ev backup.Event) {
	kind, ok := envelopeTypes[ev.Type]
	if !ok {
		kind = "backup." + string(ev.Type)
	}
	payload, err := json.Marshal(WSEnvelope{Type: kind, Data: ev, Timestamp: ev.Timestamp.Unix()})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("type", kind), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- outbound{kind: kind, payload: payload}:
	case <-h.quit:
	default:
		h.logger.Warn("event dropped, broadcast queue full", zap.String("type", kind))
	}
}

// clientMessage is sent by clients to manage subscriptions.
type clientMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

// readPump pumps messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Debug("invalid message format", zap.String("client", c.id), zap.Error(err))
			continue
		}

		switch strings.ToLower(msg.Action) {
		case "subscribe":
			c.setSubscribed(msg.Events, true)
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})
		case "unsubscribe":
			c.setSubscribed(msg.Events, false)
			c.reply(map[string]interface{}{"action": "unsubscribe_ack", "unsubscribed": msg.Events})
		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

// reply queues a control message through the hub so it never races a
// closed send channel.
func (c *WSClient) reply(msg map[string]interface{}) {
	msg["timestamp"] = time.Now().Unix()
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// writePump pumps messages to the WebSocket connection.
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

// HandleWebSocket handles WebSocket connections.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("failed to upgrade", zap.Error(err))
			return
		}

		client := &WSClient{
			id:            uuid.New(),
			conn:          conn,
			send:          make(chan []byte, sendBuffer),
			hub:           hub,
			subscriptions: make(map[string]bool),
		}

		if !hub.add(client) {
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
