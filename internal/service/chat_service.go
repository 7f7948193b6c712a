package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dom/healthguide/internal/chat"
	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/genai"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/metrics"
)

// PublicOwner owns sessions created by the unauthenticated chat endpoints.
const PublicOwner = chat.PublicOwner

// LanguageModel is the subset of the generative language client the services use.
type LanguageModel interface {
	Generate(ctx context.Context, parts ...genai.Part) (string, error)
	Chat(ctx context.Context, history []domain.Turn, message string) (string, error)
}

type ChatService struct {
	registry *chat.Registry
	model    LanguageModel
	log      *logger.Logger
	now      func() time.Time
}

func NewChatService(registry *chat.Registry, model LanguageModel, log *logger.Logger) *ChatService {
	return &ChatService{
		registry: registry,
		model:    model,
		log:      log,
		now:      time.Now,
	}
}

type ChatInput struct {
	Message   string
	SessionID string
	OwnerID   string
}

type ChatResult struct {
	Response  string    `json:"response"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat forwards message to the model with the session history as context.
// The exchange is recorded only when the model answers.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}

	owner := ownerOrPublic(input.OwnerID)

	conv, err := s.registry.GetOrCreate(input.SessionID, owner)
	if err != nil {
		s.log.Warn("chat.Chat: session not accessible", "session_id", input.SessionID, "owner", owner)
		return nil, err
	}

	start := time.Now()
	reply, err := s.model.Chat(ctx, conv.Turns, input.Message)
	metrics.RecordUpstream("chat", upstreamStatus(err), time.Since(start).Seconds())
	if err != nil {
		s.log.Error("chat.Chat: model call failed", "session_id", conv.ID, "err", err)
		return nil, err
	}

	if err := s.registry.AppendTurn(conv.ID, input.Message, reply); err != nil {
		// Evicted between the lookup and the reply; the answer is still valid.
		s.log.Warn("chat.Chat: session gone before append", "session_id", conv.ID, "err", err)
	}

	return &ChatResult{
		Response:  reply,
		SessionID: conv.ID,
		Timestamp: s.now(),
	}, nil
}

// History returns the turns of a session the caller may access.
func (s *ChatService) History(sessionID, ownerID string) ([]domain.Turn, error) {
	conv, err := s.registry.Get(sessionID, ownerOrPublic(ownerID))
	if err != nil {
		return nil, err
	}
	return conv.Turns, nil
}

func (s *ChatService) DeleteSession(sessionID, ownerID string) error {
	if err := s.registry.Delete(sessionID, ownerOrPublic(ownerID)); err != nil {
		return err
	}
	s.log.Info("chat.DeleteSession: session cleared", "session_id", sessionID)
	return nil
}

// ListSessions returns the ids of the caller's own sessions.
func (s *ChatService) ListSessions(ownerID string) []string {
	return s.registry.ListOwned(ownerOrPublic(ownerID))
}

func ownerOrPublic(ownerID string) string {
	if ownerID == "" {
		return PublicOwner
	}
	return ownerID
}

func upstreamStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
