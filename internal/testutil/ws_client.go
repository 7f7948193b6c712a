package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dom/healthguide/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSReply is any frame the chat socket sends back.
type WSReply struct {
	websocket.ReplyFrame
	Error string `json:"error"`
}

// WSClient is a test chat WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *WSReply
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient dials url and fails the test on error
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := *gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *WSReply, 16),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(client.Close)

	return client
}

func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg WSReply
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		select {
		case c.messages <- &msg:
		case <-c.done:
			return
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// Send writes a chat frame
func (c *WSClient) Send(message, sessionID string) {
	c.t.Helper()

	data, err := json.Marshal(websocket.ChatFrame{Message: message, SessionID: sessionID})
	if err != nil {
		c.t.Fatalf("failed to marshal frame: %v", err)
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send frame: %v", err)
	}
}

// SendRaw writes data as a text frame without encoding it
func (c *WSClient) SendRaw(data string) {
	c.t.Helper()

	c.mu.Lock()
	err := c.conn.WriteMessage(gorillaWS.TextMessage, []byte(data))
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send frame: %v", err)
	}
}

// Expect waits for the next frame
func (c *WSClient) Expect(timeout time.Duration) *WSReply {
	c.t.Helper()

	select {
	case msg, ok := <-c.messages:
		if !ok {
			c.t.Fatalf("websocket closed while waiting for a frame")
		}
		return msg
	case <-time.After(timeout):
		c.t.Fatalf("timeout waiting for a frame")
	}
	return nil
}
