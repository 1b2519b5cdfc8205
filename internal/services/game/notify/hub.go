package notify

import (
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cortonemo/narequenta-vtt/internal/platform/timeouts"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/gorilla/websocket"
	"golang.org/x/text/message"
)

const (
	writeWait  = timeouts.WebsocketWrite
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512

	// DefaultSendBuffer is the per-client queue length before a client is
	// considered slow and dropped.
	DefaultSendBuffer = 32
)

// Path is where the hub is mounted by the game service.
const Path = "/notifications"

// Hub fans notifications out to websocket subscribers. Each subscriber picks
// its locale with the "locale" query parameter and receives notifications
// rendered for it.
type Hub struct {
	upgrader   websocket.Upgrader
	logger     *log.Logger
	sendBuffer int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn    *websocket.Conn
	printer *message.Printer
	send    chan Notification
	once    sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.send) })
}

// NewHub builds an empty hub. A nil logger writes to stderr.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:     logger,
		sendBuffer: DefaultSendBuffer,
		clients:    make(map[*client]struct{}),
	}
}

// SetSendBuffer changes the queue length for clients that connect afterwards.
func (h *Hub) SetSendBuffer(n int) {
	if n < 1 {
		n = 1
	}
	h.mu.Lock()
	h.sendBuffer = n
	h.mu.Unlock()
}

// ClientCount reports the connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("notifications upgrade: %v", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	c := &client{
		conn:    conn,
		printer: NewPrinter(r.URL.Query().Get("locale")),
		send:    make(chan Notification, h.sendBuffer),
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// PublishReport renders a completed resolution for every subscriber.
func (h *Hub) PublishReport(report resolution.Report) {
	h.publish(func(p *message.Printer) []Notification { return FromReport(report, p) })
}

// PublishError renders a rejected resolution for every subscriber.
func (h *Hub) PublishError(err error) {
	h.publish(func(p *message.Printer) []Notification { return []Notification{FromError(err, p)} })
}

func (h *Hub) publish(build func(*message.Printer) []Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		for _, n := range build(c.printer) {
			select {
			case c.send <- n:
			default:
				h.logger.Printf("notifications: dropping slow client")
				h.removeLocked(c)
			}
			if _, ok := h.clients[c]; !ok {
				break
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.stop()
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Printf("notifications read: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case n, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
