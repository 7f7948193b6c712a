package handlers

import (
	"errors"
	"net/http"

	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/token"
	"github.com/dom/healthguide/internal/websocket"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler serves the chat exchange over a socket authenticated by
// the token query parameter.
type WebSocketHandler struct {
	hub         *websocket.Hub
	authService *service.AuthService
	chatService *service.ChatService
	log         *logger.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, authService *service.AuthService, chatService *service.ChatService, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
		chatService: chatService,
		log:         log,
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authService.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, token.ErrTokenMissing) || errors.Is(err, token.ErrTokenExpired) {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("handlers.WebSocket: upgrade failed", "err", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID.String(), h.chatService, h.log)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
