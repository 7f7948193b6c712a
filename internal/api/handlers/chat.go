package handlers

import (
	"net/http"
	"time"

	"github.com/dom/healthguide/internal/api/middleware"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/validator"
	"github.com/go-chi/chi/v5"
)

type ChatHandler struct {
	chatService *service.ChatService
	validate    *validator.Validator
	log         *logger.Logger
}

func NewChatHandler(chatService *service.ChatService, validate *validator.Validator, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, validate: validate, log: log}
}

type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"sessionId" validate:"max=200"`
}

type ChatResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat answers an authenticated user; generated session ids carry the user id.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	h.chat(w, r, userID.String())
}

// ChatPublic serves both the public and the history variant; history is
// always kept per session.
func (h *ChatHandler) ChatPublic(w http.ResponseWriter, r *http.Request) {
	h.chat(w, r, service.PublicOwner)
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request, owner string) {
	var req ChatRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeServiceError(w, h.log, "handlers.Chat", err)
		return
	}

	result, err := h.chatService.Chat(r.Context(), service.ChatInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		OwnerID:   owner,
	})
	if err != nil {
		writeChatError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Success:   true,
		Response:  result.Response,
		SessionID: result.SessionID,
		Timestamp: result.Timestamp,
	})
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if err := h.chatService.DeleteSession(sessionID, callerOwner(r)); err != nil {
		writeServiceError(w, h.log, "handlers.DeleteSession", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Session cleared",
	})
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.chatService.ListSessions(callerOwner(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"activeSessions": len(sessions),
		"sessions":       sessions,
	})
}

// callerOwner is the authenticated user, or the shared public owner when the
// request carried no token.
func callerOwner(r *http.Request) string {
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		return userID.String()
	}
	return service.PublicOwner
}

// writeChatError uses the chatbot wording for upstream failures.
func writeChatError(w http.ResponseWriter, log *logger.Logger, err error) {
	if isUpstream(err) {
		log.Error("handlers.Chat: chatbot failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to generate response from chatbot",
			Details: err.Error(),
		})
		return
	}
	writeServiceError(w, log, "handlers.Chat", err)
}
