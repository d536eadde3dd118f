package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 * 1024 // negotiation messages are short text

	// Budget for persisting an inbound message
	inboundTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development, in production you should restrict this
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundFrame is the JSON the client sends on the socket
type inboundFrame struct {
	Body string `json:"body"`
}

// errorFrame is sent back to a single client when its message is refused
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub *Hub

	// The WebSocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Student this client authenticates as
	studentID int64

	// Swap request this client negotiates on
	requestID int64

	// Sink that authorizes, persists and broadcasts inbound messages
	sink MessageSink

	// Logger instance
	logger zerolog.Logger

	// Guards send against a write racing the hub's close. The hub closes
	// send from its Run goroutine while readPump may be queueing an error
	// frame from its own.
	mu     sync.Mutex
	closed bool
}

// trySend queues a frame for delivery. Returns false when the send buffer is
// full or the channel has already been closed; the frame is dropped either way.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
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

// closeSend closes the send channel exactly once. Only the hub calls this.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the websocket connection into the sink.
// The sink owns authorization and persistence; the hub only ever sees
// messages the sink accepted.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info().
					Int64("studentID", c.studentID).
					Int64("requestID", c.requestID).
					Msg("WebSocket closed normally")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().
					Err(err).
					Int64("studentID", c.studentID).
					Int64("requestID", c.requestID).
					Msg("Unexpected WebSocket close")
			} else {
				c.logger.Debug().
					Err(err).
					Int64("studentID", c.studentID).
					Int64("requestID", c.requestID).
					Msg("WebSocket read error")
			}
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Debug().
				Err(err).
				Int64("studentID", c.studentID).
				Int64("requestID", c.requestID).
				Msg("Failed to unmarshal client frame")
			c.sendError("invalid message format")
			continue
		}

		if frame.Body == "" {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
		// Sender identity comes from the authenticated connection, never
		// from the frame.
		err = c.sink.HandleInbound(ctx, c.requestID, c.studentID, frame.Body)
		cancel()
		if err != nil {
			c.logger.Debug().
				Err(err).
				Int64("studentID", c.studentID).
				Int64("requestID", c.requestID).
				Msg("Inbound message refused")
			c.sendError(err.Error())
		}
	}
}

// sendError delivers an error frame to this client only
func (c *Client) sendError(message string) {
	data, err := json.Marshal(&errorFrame{Type: "error", Message: message})
	if err != nil {
		return
	}
	c.trySend(data)
}

// writePump pumps messages from the hub to the websocket connection
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
				// The hub closed the channel
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
