package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients grouped into negotiation rooms,
// one room per swap request, and broadcasts messages to room members.
type Hub struct {
	// Registered clients organized by swap request ID
	rooms map[int64]map[*Client]bool

	// Channel for outbound messages to room members
	broadcast chan *Message

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Close-room requests from the swap engine
	closeRoom chan int64

	// Mutex for concurrent access to the rooms map
	mu sync.RWMutex

	// Logger for Hub operations
	logger zerolog.Logger
}

// Message represents a negotiation message delivered over WebSocket.
// Delivery preserves the order in which messages were accepted by the hub.
type Message struct {
	// Type of frame: "message", "closed"
	Type string `json:"type"`

	// Swap request this message belongs to
	RequestID int64 `json:"requestId"`

	// Student who sent the message
	SenderID int64 `json:"senderId,omitempty"`

	// Display name of the sender
	SenderName string `json:"senderName,omitempty"`

	// Message body
	Body string `json:"body,omitempty"`

	// Timestamp when the message was accepted
	SentAt time.Time `json:"sentAt"`

	// Message ID from the database
	ID int64 `json:"id,omitempty"`
}

// FrameTypeMessage and FrameTypeClosed are the frame types the hub emits.
const (
	FrameTypeMessage = "message"
	FrameTypeClosed  = "closed"
)

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan *Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		closeRoom:  make(chan int64),
		rooms:      make(map[int64]map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub, handling client registrations, broadcasts and room
// closures. Messages are serialized through the broadcast channel, which
// gives subscribers hub-acceptance ordering.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case requestID := <-h.closeRoom:
			h.disconnectRoom(requestID)
		}
	}
}

// registerClient registers a new client to its request's room
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	requestID := client.requestID
	if _, ok := h.rooms[requestID]; !ok {
		h.rooms[requestID] = make(map[*Client]bool)
	}
	h.rooms[requestID][client] = true

	h.logger.Info().
		Int64("requestID", requestID).
		Int64("studentID", client.studentID).
		Msg("Client joined negotiation room")
}

// unregisterClient removes a client from its room
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	requestID := client.requestID
	if clients, ok := h.rooms[requestID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			client.closeSend()

			if len(clients) == 0 {
				delete(h.rooms, requestID)
			}

			h.logger.Info().
				Int64("requestID", requestID).
				Int64("studentID", client.studentID).
				Msg("Client left negotiation room")
		}
	}
}

// broadcastMessage delivers a message to every client in the request's room
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[message.RequestID]
	if !ok {
		h.logger.Debug().
			Int64("requestID", message.RequestID).
			Msg("No clients in room for broadcast")
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("requestID", message.RequestID).
			Msg("Failed to marshal message for broadcast")
		return
	}

	for client := range clients {
		if !client.trySend(data) {
			// Client's send buffer is full; evict it rather than stall
			// the whole room.
			client.closeSend()
			delete(clients, client)
		}
	}

	if len(clients) == 0 {
		delete(h.rooms, message.RequestID)
	}

	h.logger.Debug().
		Int64("requestID", message.RequestID).
		Int("clientCount", len(clients)).
		Msg("Message broadcast to negotiation room")
}

// disconnectRoom sends a closed frame to every member and drops them
func (h *Hub) disconnectRoom(requestID int64) {
	h.mu.Lock()
	clients, ok := h.rooms[requestID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, requestID)
	h.mu.Unlock()

	closed, err := json.Marshal(&Message{
		Type:      FrameTypeClosed,
		RequestID: requestID,
		SentAt:    time.Now(),
	})

	for client := range clients {
		if err == nil {
			client.trySend(closed)
		}
		client.closeSend()
	}

	h.logger.Info().
		Int64("requestID", requestID).
		Int("clientCount", len(clients)).
		Msg("Negotiation room closed")
}

// BroadcastToRoom sends a message to all connected members of a request's
// room. Safe for concurrent use; ordering follows hub acceptance.
func (h *Hub) BroadcastToRoom(message *Message) {
	h.broadcast <- message
}

// CloseRoom disconnects every client in the request's room. Called by the
// swap engine on terminal transitions.
func (h *Hub) CloseRoom(requestID int64) {
	h.closeRoom <- requestID
}

// RoomClientCount returns the number of connected clients for a request
func (h *Hub) RoomClientCount(requestID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.rooms[requestID]; ok {
		return len(clients)
	}
	return 0
}
