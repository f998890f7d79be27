package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Event is the frame pushed to connected clients.
type Event struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}

type owner struct {
	role models.Role
	id   uint
}

type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	owner owner
	once  sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks open websocket connections per owner and pushes appointment
// events to them. Owners with no open connection are skipped.
type Hub struct {
	mu      sync.RWMutex
	clients map[owner]map[*Client]struct{}
	log     zerolog.Logger
	now     func() time.Time
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[owner]map[*Client]struct{}),
		log:     log.With().Str("component", "ws").Logger(),
		now:     time.Now,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.owner]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.owner] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.owner]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			c.close()
		}
		if len(set) == 0 {
			delete(h.clients, c.owner)
		}
	}
}

// Connected reports how many connections the owner has open.
func (h *Hub) Connected(role models.Role, id uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[owner{role, id}])
}

func (h *Hub) NotifyUser(_ context.Context, userID uint, title, body string, metadata map[string]string) error {
	return h.publish(owner{models.RoleUser, userID}, title, body, metadata)
}

func (h *Hub) NotifyConsultant(_ context.Context, consultantID uint, title, body string, metadata map[string]string) error {
	return h.publish(owner{models.RoleConsultant, consultantID}, title, body, metadata)
}

func (h *Hub) publish(to owner, title, body string, metadata map[string]string) error {
	msg, err := json.Marshal(Event{
		Type:   metadata["event"],
		Title:  title,
		Body:   body,
		Data:   metadata,
		SentAt: h.now().UTC(),
	})
	if err != nil {
		return err
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients[to] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("role", string(to.role)).Uint("owner_id", to.id).Msg("dropping slow websocket client")
		h.unregister(c)
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, set := range h.clients {
		for c := range set {
			c.close()
		}
		delete(h.clients, key)
	}
}

// readPump only services control frames; clients do not send events.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
	}
}

func (c *Client) writePump() {
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
