package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 16

	// replyWait bounds one model call; the model client gives up after 60s.
	replyWait = 90 * time.Second
)

// Responder answers one chat frame.
type Responder interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatResult, error)
}

// Client is one authenticated chat socket. Frames from a client are
// answered in order, one at a time.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	ownerID   string
	responder Responder
	log       *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool

	pongWait  time.Duration
	replyWait time.Duration
}

func NewClient(hub *Hub, conn *websocket.Conn, ownerID string, responder Responder, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		ownerID:   ownerID,
		responder: responder,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		pongWait:  pongWait,
		replyWait: replyWait,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket.ReadPump: unexpected close", "owner", c.ownerID, "err", err)
			}
			return
		}

		var frame ChatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("Invalid message format")
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame ChatFrame) {
	if frame.Message == "" {
		c.sendError("Message is required")
		return
	}

	// Pongs queue up unread while the model answers, so the deadline has to
	// outlast the call.
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait + c.replyWait))
	result, err := c.responder.Chat(c.ctx, service.ChatInput{
		Message:   frame.Message,
		SessionID: frame.SessionID,
		OwnerID:   c.ownerID,
	})
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	if err != nil {
		c.log.Error("websocket.handleFrame: chat failed", "owner", c.ownerID, "err", err)
		c.sendError("Failed to generate response from chatbot")
		return
	}

	c.sendJSON(ReplyFrame{
		Success:   true,
		Response:  result.Response,
		SessionID: result.SessionID,
		Timestamp: result.Timestamp,
	})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
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

func (c *Client) sendError(msg string) {
	c.sendJSON(ErrorFrame{Error: msg})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("websocket.sendJSON: marshal failed", "err", err)
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("websocket.sendJSON: send buffer full, dropping frame", "owner", c.ownerID)
	}
}

// close must be called with the hub lock held.
func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}
