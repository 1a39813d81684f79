package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

// WSSubscribePayload is the payload of subscribe and unsubscribe
// messages. Channels are event types, "*" or a family such as
// "element.*". Submodels are base64url identifiers; an empty set means
// every submodel.
type WSSubscribePayload struct {
	Channels  []string `json:"channels"`
	Submodels []string `json:"submodels,omitempty"`
}

// subscription is the set of events a client receives.
type subscription struct {
	channels  map[string]struct{}
	submodels map[string]struct{}
}

func newSubscription() subscription {
	return subscription{channels: map[string]struct{}{}, submodels: map[string]struct{}{}}
}

func (s subscription) matches(eventType, submodelID string) bool {
	if len(s.submodels) > 0 {
		if _, ok := s.submodels[submodelID]; !ok {
			return false
		}
	}
	for p := range s.channels {
		if channelMatches(p, eventType) {
			return true
		}
	}
	return false
}

// channelMatches reports whether pattern selects eventType. A pattern
// ending in ".*" selects the whole family.
func channelMatches(pattern, eventType string) bool {
	switch {
	case pattern == WSChannelAll:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == eventType
	}
}

// decodeSubmodels decodes base64url identifiers.
func decodeSubmodels(encoded []string) ([]string, error) {
	ids := make([]string, 0, len(encoded))
	for _, e := range encoded {
		id, err := submodel.DecodeIdentifier(e)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WSClient is one WebSocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	sub    subscription
	closed bool
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
		sub:  newSubscription(),
	}
}

func (c *WSClient) wants(eventType, submodelID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.sub.matches(eventType, submodelID)
}

// enqueue queues data without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *WSClient) enqueue(data []byte) bool {
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

// close marks the client closed and ends its write loop. Idempotent.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// subscribe adds channels and submodels and returns the resulting
// subscription.
func (c *WSClient) subscribe(channels, submodels []string) WSSubscribePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			c.sub.channels[ch] = struct{}{}
		}
	}
	for _, id := range submodels {
		c.sub.submodels[id] = struct{}{}
	}
	return c.snapshotLocked()
}

// unsubscribe removes channels and submodels and returns the resulting
// subscription.
func (c *WSClient) unsubscribe(channels, submodels []string) WSSubscribePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.sub.channels, ch)
	}
	for _, id := range submodels {
		delete(c.sub.submodels, id)
	}
	return c.snapshotLocked()
}

func (c *WSClient) snapshotLocked() WSSubscribePayload {
	out := WSSubscribePayload{Channels: make([]string, 0, len(c.sub.channels))}
	for ch := range c.sub.channels {
		out.Channels = append(out.Channels, ch)
	}
	for id := range c.sub.submodels {
		out.Submodels = append(out.Submodels, submodel.EncodeIdentifier(id))
	}
	sort.Strings(out.Channels)
	sort.Strings(out.Submodels)
	return out
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by corsMiddleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket streams repository events. The comma-separated
// "channels" and "submodels" query parameters seed the subscription;
// subscribe and unsubscribe messages change it later.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	submodels, err := decodeSubmodels(splitList(q.Get("submodels")))
	if err != nil {
		writeBadRequest(w, "submodels: "+err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.requestLogger(r).Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn)
	c.subscribe(splitList(q.Get("channels")), submodels)
	s.hub.Register(c)

	go c.writeLoop(s.wsCfg)
	go c.readLoop(s.wsCfg)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *WSClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Application messages count as liveness too.
		extend() //nolint:errcheck
		c.handleMessage(data)
	}
}

func (c *WSClient) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "")) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one client frame.
func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type    string             `json:"type"`
		ID      string             `json:"id"`
		Payload WSSubscribePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid message: "+err.Error()))
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		ids, err := decodeSubmodels(msg.Payload.Submodels)
		if err != nil {
			c.reply(msg.ID, WSTypeError, errorPayload(fmt.Sprintf("submodels: %v", err)))
			return
		}
		var state WSSubscribePayload
		if msg.Type == WSTypeSubscribe {
			state = c.subscribe(msg.Payload.Channels, ids)
		} else {
			state = c.unsubscribe(msg.Payload.Channels, ids)
		}
		c.reply(msg.ID, WSTypeResponse, state)
	default:
		c.reply(msg.ID, WSTypeError, errorPayload("unknown message type: "+msg.Type))
	}
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
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
	c.enqueue(data)
}
