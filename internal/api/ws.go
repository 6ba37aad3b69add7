package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local-only API; the CORS policy gates browser origins.
		return true
	},
}

// wsClient is one connected status subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// wsHub fans events out to all connected status subscribers.
type wsHub struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	events     chan []byte
	done       chan struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		events:     make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

func (h *wsHub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.events:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow subscriber, drop it rather than block.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (h *wsHub) stop() {
	close(h.done)
}

// add hands a new subscriber to the hub loop. It reports false when the
// hub has already stopped, so pumps are never started for a dead hub.
func (h *wsHub) add(c *wsClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// drop removes a subscriber. Selecting on done keeps readPump from
// blocking forever when the hub loop has already exited.
func (h *wsHub) drop(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *wsHub) broadcast(evt events.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode ws event")
		return
	}
	select {
	case h.events <- data:
	default:
		log.Warn().Msg("WS event buffer full, dropping event")
	}
}

// HandleStatusWS upgrades to a websocket and streams registry and sync
// events until the client goes away.
func (s *Server) HandleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WS upgrade failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 16)}
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(s.hub)
}

// readPump discards inbound frames and detects disconnects.
func (c *wsClient) readPump(hub *wsHub) {
	defer func() {
		hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("WS client closed unexpectedly")
			}
			return
		}
	}
}

// writePump streams hub events and keeps the connection alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
