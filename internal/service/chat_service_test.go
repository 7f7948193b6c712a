package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dom/healthguide/internal/chat"
	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatService(t *testing.T) (*service.ChatService, *testutil.StubModel, *chat.Registry) {
	t.Helper()
	registry := chat.NewRegistry(chat.Options{MaxSessions: 10, MaxTurns: 5, TTL: time.Hour})
	model := testutil.NewStubModel()
	return service.NewChatService(registry, model, logger.Nop()), model, registry
}

func TestChatService_Chat(t *testing.T) {
	svc, model, _ := newChatService(t)
	ctx := context.Background()
	model.SetResponder(func(call testutil.ModelCall) (string, error) {
		return "echo: " + call.Message, nil
	})

	first, err := svc.Chat(ctx, service.ChatInput{Message: "I have a headache", OwnerID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "echo: I have a headache", first.Response)
	assert.True(t, strings.HasPrefix(first.SessionID, "user-1_"), first.SessionID)

	second, err := svc.Chat(ctx, service.ChatInput{Message: "and a fever", SessionID: first.SessionID, OwnerID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	calls := model.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].History)
	require.Len(t, calls[1].History, 1)
	assert.Equal(t, "I have a headache", calls[1].History[0].UserMessage)
	assert.Equal(t, "echo: I have a headache", calls[1].History[0].Reply)

	history, err := svc.History(first.SessionID, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "and a fever", history[1].UserMessage)
}

func TestChatService_PublicSessionID(t *testing.T) {
	svc, _, _ := newChatService(t)

	result, err := svc.Chat(context.Background(), service.ChatInput{Message: "hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.SessionID, service.PublicOwner+"_"), result.SessionID)
}

func TestChatService_EmptyMessage(t *testing.T) {
	svc, model, _ := newChatService(t)

	_, err := svc.Chat(context.Background(), service.ChatInput{Message: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, model.Calls())
}

func TestChatService_ModelFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "invalid key", err: fmt.Errorf("%w: bad key", domain.ErrInvalidAPIKey), wantErr: domain.ErrInvalidAPIKey},
		{name: "upstream", err: fmt.Errorf("%w: status 503", domain.ErrUpstreamFailure), wantErr: domain.ErrUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, model, registry := newChatService(t)
			model.SetError(tt.err)

			_, err := svc.Chat(context.Background(), service.ChatInput{Message: "hi", SessionID: "s1"})
			assert.ErrorIs(t, err, tt.wantErr)

			// The session exists but no turn was recorded.
			history, err := registry.History("s1")
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestChatService_Sessions(t *testing.T) {
	svc, _, _ := newChatService(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := svc.Chat(ctx, service.ChatInput{Message: "hi", SessionID: id})
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, svc.ListSessions(""))

	require.NoError(t, svc.DeleteSession("a", ""))
	assert.ElementsMatch(t, []string{"b"}, svc.ListSessions(""))

	err := svc.DeleteSession("a", "")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestChatService_OwnerIsolation(t *testing.T) {
	svc, model, _ := newChatService(t)
	ctx := context.Background()

	owned, err := svc.Chat(ctx, service.ChatInput{Message: "private", OwnerID: "user-1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller string
	}{
		{name: "public caller", caller: ""},
		{name: "other user", caller: "user-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Chat(ctx, service.ChatInput{Message: "let me in", SessionID: owned.SessionID, OwnerID: tt.caller})
			assert.ErrorIs(t, err, domain.ErrSessionNotFound)

			_, err = svc.History(owned.SessionID, tt.caller)
			assert.ErrorIs(t, err, domain.ErrSessionNotFound)

			assert.ErrorIs(t, svc.DeleteSession(owned.SessionID, tt.caller), domain.ErrSessionNotFound)
			assert.NotContains(t, svc.ListSessions(tt.caller), owned.SessionID)
		})
	}

	// Only the owner's own message reached the model.
	assert.Len(t, model.Calls(), 1)

	history, err := svc.History(owned.SessionID, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, []string{owned.SessionID}, svc.ListSessions("user-1"))
}
