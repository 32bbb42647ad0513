package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/livecss/internal/editor"
	"github.com/charlesng35/livecss/internal/snippets"
	"github.com/charlesng35/livecss/pkg/logger"
	"github.com/charlesng35/livecss/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 2 << 20 // 2 MiB, room for an imported document

	defaultBufferSize = 64
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// clientMessage is every frame a browser may send: stream control or an editor action.
type clientMessage struct {
	Action  string          `json:"action"`
	Streams []string        `json:"streams,omitempty"`
	ID      string          `json:"id,omitempty"`
	Value   string          `json:"value,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Option customises a Hub.
type Option func(*Hub)

// WithEditor enables editor actions, each connection getting its own session over store.
func WithEditor(store *snippets.Store, reducer *editor.Reducer) Option {
	return func(h *Hub) {
		h.store = store
		h.reducer = reducer
	}
}

// Hub coordinates realtime streams and per-connection editor sessions.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*connection]struct{}
	upgrader      websocket.Upgrader
	store         *snippets.Store
	reducer       *editor.Reducer
	log           *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subscriptions: make(map[string]map[*connection]struct{}),
		log:           logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOriginOrLoopback,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve upgrades the HTTP connection to a WebSocket, subscribes it to streams and blocks
// until the client goes away.
func (h *Hub) Serve(streams []string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, conn)
	h.subscribe(client, streams)

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	go client.writeLoop()
	client.readLoop(r)
}

// BroadcastStream delivers a message to every subscriber listening on the provided stream.
func (h *Hub) BroadcastStream(stream string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" || stream == StreamEditor {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	message.Stream = stream
	for client := range h.subscriptions[stream] {
		h.enqueue(client, message)
	}
}

// SnippetsChanged announces a store write to the snippets stream.
func (h *Hub) SnippetsChanged(op, id string) {
	h.BroadcastStream(StreamSnippets, Message{
		Event: EventSnippetsChanged,
		Data:  map[string]string{"op": op, "id": id},
	})
}

// Subscribers returns the number of connections on stream.
func (h *Hub) Subscribers(stream string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[normalizeStream(stream)])
}

func (h *Hub) subscribe(client *connection, streams []string) {
	if len(streams) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		if stream == StreamEditor {
			continue
		}
		if _, exists := client.streams[stream]; exists {
			continue
		}
		if h.subscriptions[stream] == nil {
			h.subscriptions[stream] = make(map[*connection]struct{})
		}
		client.streams[stream] = struct{}{}
		h.subscriptions[stream][client] = struct{}{}
	}
}

func (h *Hub) unsubscribe(client *connection, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		h.removeSubscriptionLocked(client, stream)
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for stream := range client.streams {
		h.removeSubscriptionLocked(client, stream)
	}
}

func (h *Hub) removeSubscriptionLocked(client *connection, stream string) {
	clients, ok := h.subscriptions[stream]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.subscriptions, stream)
	}
	delete(client.streams, stream)
}

// enqueue never blocks; a client that cannot keep up is disconnected.
func (h *Hub) enqueue(client *connection, message Message) {
	if !client.deliver(message) {
		h.log.Warn("dropping backpressure client")
		go client.close()
	}
}

type connection struct {
	hub     *Hub
	socket  *websocket.Conn
	streams map[string]struct{}
	send    chan Message
	session *editor.Session

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn) *connection {
	return &connection{
		hub:     hub,
		socket:  conn,
		streams: make(map[string]struct{}),
		send:    make(chan Message, defaultBufferSize),
	}
}

func (c *connection) readLoop(r *http.Request) {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := r.Context()
	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.log.Info("unexpected close", zap.Error(err))
			}
			return
		}

		if len(payload) == 0 {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.reply(Message{Stream: StreamEditor, Event: EventError, Data: map[string]string{"message": "invalid message"}})
			continue
		}

		action := strings.ToLower(strings.TrimSpace(msg.Action))
		switch action {
		case "subscribe":
			c.hub.subscribe(c, msg.Streams)
		case "unsubscribe":
			c.hub.unsubscribe(c, msg.Streams)
		case "ping":
			c.reply(Message{Event: EventPong})
		default:
			c.handleEditorAction(ctx, action, msg)
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) reply(message Message) {
	c.hub.enqueue(c, message)
}

// deliver queues message unless the connection is closed or its buffer is full.
func (c *connection) deliver(message Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)

		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		_ = c.socket.Close()
	})
}

func sameOriginOrLoopback(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := hostWithoutPort(origin)
	requestHost := hostWithoutPort(r.Host)
	return originHost == requestHost || isLoopback(originHost)
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(streams []string) []string {
	unique := make(map[string]struct{}, len(streams))
	var result []string
	for _, stream := range streams {
		if stream = normalizeStream(stream); stream != "" {
			if _, exists := unique[stream]; !exists {
				unique[stream] = struct{}{}
				result = append(result, stream)
			}
		}
	}
	return result
}
