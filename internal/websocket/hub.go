package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenParser resolves an access token to the user it was issued for.
type TokenParser interface {
	ParseUserID(token string) (uuid.UUID, error)
}

// Snapshotter builds the first message a socket receives. A nil message
// sends nothing.
type Snapshotter interface {
	DueSnapshot(ctx context.Context, userID uuid.UUID) (*models.WSMessage, error)
}

// client is one open socket. Only writePump writes to conn.
type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub relays user_updates pub/sub messages (review_scheduled, reviews_due,
// competence_updated, job events) to each user's open sockets.
type Hub struct {
	mu          sync.RWMutex
	clients     map[uuid.UUID]map[*client]struct{}
	redisClient *redis.Client
	auth        TokenParser
	snapshots   Snapshotter
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client, auth TokenParser, snapshots Snapshotter) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]map[*client]struct{}),
		redisClient: redisClient,
		auth:        auth,
		snapshots:   snapshots,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.auth.ParseUserID(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.greet(context.WithoutCancel(r.Context()), c)

	go h.writePump(c)
	go h.readPump(c)
}

// Connections reports how many sockets the user has open.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set

		// first socket for this user opens the subscription
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[c.userID] = cancel
		if h.redisClient != nil {
			go h.subscribe(ctx, c.userID)
		}
	}
	set[c] = struct{}{}

	log.Printf("WebSocket connected: user %s (total: %d)", c.userID, len(set))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)

	if len(set) == 0 {
		delete(h.clients, c.userID)
		if cancel, ok := h.cancelFuncs[c.userID]; ok {
			cancel()
			delete(h.cancelFuncs, c.userID)
		}
	}

	log.Printf("WebSocket disconnected: user %s", c.userID)
}

// greet queues the due-reviews snapshot for a fresh socket.
func (h *Hub) greet(ctx context.Context, c *client) {
	if h.snapshots == nil {
		return
	}
	msg, err := h.snapshots.DueSnapshot(ctx, c.userID)
	if err != nil {
		log.Printf("WebSocket snapshot for user %s failed: %v", c.userID, err)
		return
	}
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket snapshot for user %s: %v", c.userID, err)
		return
	}
	h.deliver(c, data)
}

func (h *Hub) subscribe(ctx context.Context, userID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.UserChannel(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		h.deliver(c, data)
	}
}

// deliver queues data without blocking; a socket a full buffer behind loses
// the message. send is only closed by unregister under h.mu, so callers hold
// the read lock or run before readPump starts.
func (h *Hub) deliver(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("WebSocket user %s is slow, dropping message", c.userID)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("WebSocket write to user %s failed: %v", c.userID, err)
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
