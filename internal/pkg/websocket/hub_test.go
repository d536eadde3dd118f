package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	h := NewHub(zerolog.Nop())
	go h.Run()
	return h
}

func newTestClient(h *Hub, studentID, requestID int64, buffer int) *Client {
	return &Client{
		hub:       h,
		send:      make(chan []byte, buffer),
		studentID: studentID,
		requestID: requestID,
		logger:    zerolog.Nop(),
	}
}

// join registers the client and waits for the hub to pick it up.
func join(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.register <- c
	waitForCount(t, h, c.requestID, func(n int) bool { return n > 0 })
}

func waitForCount(t *testing.T, h *Hub, requestID int64, ok func(int) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok(h.RoomClientCount(requestID)) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %d never reached the expected client count", requestID)
}

func recvFrame(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed while expecting a frame")
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return &msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	h := newTestHub()

	alice := newTestClient(h, 1, 100, 8)
	bob := newTestClient(h, 2, 100, 8)
	carol := newTestClient(h, 3, 200, 8)
	join(t, h, alice)
	join(t, h, bob)
	join(t, h, carol)

	h.BroadcastToRoom(&Message{Type: FrameTypeMessage, RequestID: 100, SenderID: 1, Body: "hello"})

	for _, c := range []*Client{alice, bob} {
		msg := recvFrame(t, c)
		if msg.Type != FrameTypeMessage || msg.Body != "hello" || msg.RequestID != 100 {
			t.Errorf("frame = %+v, want hello in room 100", msg)
		}
	}

	select {
	case data := <-carol.send:
		t.Errorf("room 200 client received a room 100 frame: %s", data)
	default:
	}
}

func TestBroadcastOrdering(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 1, 100, 16)
	join(t, h, c)

	bodies := []string{"one", "two", "three", "four"}
	for _, body := range bodies {
		h.BroadcastToRoom(&Message{Type: FrameTypeMessage, RequestID: 100, Body: body})
	}

	for i, want := range bodies {
		msg := recvFrame(t, c)
		if msg.Body != want {
			t.Errorf("frame %d body = %q, want %q", i, msg.Body, want)
		}
	}
}

func TestCloseRoom(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, 1, 100, 8)
	bob := newTestClient(h, 2, 100, 8)
	join(t, h, alice)
	join(t, h, bob)

	h.CloseRoom(100)

	for _, c := range []*Client{alice, bob} {
		msg := recvFrame(t, c)
		if msg.Type != FrameTypeClosed || msg.RequestID != 100 {
			t.Errorf("frame = %+v, want closed frame for room 100", msg)
		}
		// After the closed frame the send channel must be closed
		if _, ok := <-c.send; ok {
			t.Error("send channel still open after room close")
		}
	}

	if n := h.RoomClientCount(100); n != 0 {
		t.Errorf("room count after close = %d, want 0", n)
	}
}

func TestCloseRoomWithoutMembers(t *testing.T) {
	h := newTestHub()
	h.CloseRoom(999)

	// The hub must still be serving other rooms afterwards
	c := newTestClient(h, 1, 100, 8)
	join(t, h, c)
	h.BroadcastToRoom(&Message{Type: FrameTypeMessage, RequestID: 100, Body: "still alive"})
	if msg := recvFrame(t, c); msg.Body != "still alive" {
		t.Errorf("frame body = %q, want %q", msg.Body, "still alive")
	}
}

func TestUnregister(t *testing.T) {
	h := newTestHub()
	alice := newTestClient(h, 1, 100, 8)
	bob := newTestClient(h, 2, 100, 8)
	join(t, h, alice)
	join(t, h, bob)

	h.unregister <- alice
	waitForCount(t, h, 100, func(n int) bool { return n == 1 })

	if _, ok := <-alice.send; ok {
		t.Error("send channel still open after unregister")
	}

	// Remaining member keeps receiving
	h.BroadcastToRoom(&Message{Type: FrameTypeMessage, RequestID: 100, Body: "still here"})
	if msg := recvFrame(t, bob); msg.Body != "still here" {
		t.Errorf("frame body = %q, want %q", msg.Body, "still here")
	}
}

func TestErrorFrameAfterRoomClosed(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 1, 42, 8)
	join(t, h, c)

	h.CloseRoom(42)

	// Drain until the hub has finished closing the send channel
	for range c.send {
	}

	// An inbound frame refused after the room closed must be dropped,
	// not sent on the closed channel
	c.sendError("channel is closed")

	if c.trySend([]byte("late frame")) {
		t.Error("trySend reported success on a closed client")
	}
}

func TestSlowClientEvicted(t *testing.T) {
	h := newTestHub()
	slow := newTestClient(h, 1, 100, 1)
	join(t, h, slow)

	// First frame fills the buffer; the second finds it full and evicts
	h.BroadcastToRoom(&Message{Type: FrameTypeMessage, RequestID: 100, Body: "fits"})
	h.BroadcastToRoom(&Message{Type: FrameTypeMessage, RequestID: 100, Body: "overflows"})

	waitForCount(t, h, 100, func(n int) bool { return n == 0 })

	if msg := recvFrame(t, slow); msg.Body != "fits" {
		t.Errorf("frame body = %q, want %q", msg.Body, "fits")
	}
	if _, ok := <-slow.send; ok {
		t.Error("send channel still open after eviction")
	}
}
