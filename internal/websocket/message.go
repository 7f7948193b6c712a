package websocket

import "time"

// ChatFrame is sent by the client.
type ChatFrame struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type ReplyFrame struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorFrame struct {
	Error string `json:"error"`
}
