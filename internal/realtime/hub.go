// Package realtime pushes dashboard invalidations to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"learncenter/internal/attendance"
	"learncenter/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// FrameInvalidate tells a dashboard to refetch.
const FrameInvalidate = "dashboard.invalidate"

// Frame is the JSON pushed to clients.
type Frame struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	RecordID  string `json:"record_id,omitempty"`
	Day       string `json:"day"`
	CourseID  string `json:"course_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// FrameFor converts an attendance change into an invalidation frame.
func FrameFor(ch attendance.Change) Frame {
	return Frame{
		Type:      FrameInvalidate,
		Action:    ch.Action,
		RecordID:  ch.RecordID,
		Day:       ch.Day,
		CourseID:  ch.CourseID,
		SessionID: ch.SessionID,
	}
}

type message struct {
	courseID string
	payload  []byte
}

// Hub fans frames out to connected clients. All client bookkeeping happens
// on the Run goroutine.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan message
	count      chan chan int
	clients    map[*client]struct{}
	log        *logger.Logger
}

// NewHub creates a hub; call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		count:      make(chan chan int),
		clients:    make(map[*client]struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case msg := <-h.broadcast:
			for c := range h.clients {
				if c.courseID != "" && c.courseID != msg.courseID {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// slow client
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	_ = c.conn.Close()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	}
}

// Broadcast queues f for delivery. Clients subscribed to a course only get
// frames for that course.
func (h *Hub) Broadcast(f Frame) {
	if h == nil {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		h.log.Error("realtime: marshal frame", err)
		return
	}
	select {
	case h.broadcast <- message{courseID: f.CourseID, payload: data}:
	default:
		h.log.Warn("realtime: broadcast buffer full, frame dropped", nil, logger.Fields{"day": f.Day})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// access is enforced by the bearer middleware in front of this handler
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades the request and streams frames until the client leaves.
// The optional course_id query parameter limits frames to one course.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		cl := &client{
			hub:      h,
			conn:     conn,
			send:     make(chan []byte, sendBufferSize),
			courseID: c.Query("course_id"),
		}
		select {
		case h.register <- cl:
		case <-c.Request.Context().Done():
			_ = conn.Close()
			return
		}
		go cl.writePump()
		cl.readPump()
	}
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	courseID string
}

// readPump only handles control frames; clients never send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-time.After(time.Second):
		}
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
