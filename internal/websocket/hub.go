package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is a routed outbound message. An empty JobID broadcasts to every
// client; otherwise only clients watching that job receive it.
type Envelope struct {
	JobID   string
	Payload []byte
}

// Client is one connected dashboard session. A client with no watch set
// receives everything; subscribing narrows it to specific jobs.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	mu       sync.Mutex
	watching map[string]struct{}
}

// subscription is the only inbound message clients send: a replacement watch
// list. An empty list clears the filter.
type subscription struct {
	Action string   `json:"action"`
	JobIDs []string `json:"job_ids"`
}

func (c *Client) setWatch(jobIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(jobIDs) == 0 {
		c.watching = nil
		return
	}
	c.watching = make(map[string]struct{}, len(jobIDs))
	for _, id := range jobIDs {
		c.watching[id] = struct{}{}
	}
}

func (c *Client) wants(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watching == nil || jobID == "" {
		return true
	}
	_, ok := c.watching[jobID]
	return ok
}

// Hub fans alert envelopes out to connected dashboard clients.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan Envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan Envelope),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run is the dispatch loop. Slow clients are dropped rather than allowed to
// back up the alert path.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Println("dashboard client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Println("dashboard client disconnected")
			}
			h.mu.Unlock()
		case env := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(env.JobID) {
					continue
				}
				select {
				case client.send <- env.Payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump consumes subscription updates until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read: %v", err)
			}
			break
		}
		var sub subscription
		if err := json.Unmarshal(data, &sub); err != nil || sub.Action != "watch" {
			continue
		}
		c.setWatch(sub.JobIDs)
	}
}

// ServeWs authenticates the token query param and upgrades the connection.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		log.Println("websocket rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		log.Println("websocket rejected: invalid token:", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		log.Println("websocket rejected: invalid claims")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role, _ := claims["role"].(string)
	if role != "admin" && role != "manager" && role != "staff" {
		log.Println("websocket rejected: unknown role")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("websocket upgrade failed:", err)
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
