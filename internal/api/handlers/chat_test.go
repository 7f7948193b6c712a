package handlers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatBody struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

func TestChatHandler_ChatPublic(t *testing.T) {
	ts := testutil.NewMemoryTestServer(t)
	ts.Model.SetResponder(func(call testutil.ModelCall) (string, error) {
		return fmt.Sprintf("turn %d", len(call.History)+1), nil
	})

	for _, path := range []string{"/chatbot/chat-public", "/chatbot/chat-with-history"} {
		t.Run(path, func(t *testing.T) {
			resp := testutil.PostJSON(t, ts.APIURL(path), map[string]string{"message": "hello"})
			defer resp.Body.Close()
			testutil.AssertStatusCode(t, resp, http.StatusOK)

			var first chatBody
			testutil.AssertJSONResponse(t, resp, &first)
			assert.True(t, first.Success)
			assert.Equal(t, "turn 1", first.Response)
			assert.True(t, strings.HasPrefix(first.SessionID, "public_"), first.SessionID)
			assert.False(t, first.Timestamp.IsZero())

			resp2 := testutil.PostJSON(t, ts.APIURL(path), map[string]string{"message": "again", "sessionId": first.SessionID})
			defer resp2.Body.Close()
			var second chatBody
			testutil.AssertJSONResponse(t, resp2, &second)
			assert.Equal(t, "turn 2", second.Response)
			assert.Equal(t, first.SessionID, second.SessionID)
		})
	}
}

func TestChatHandler_ChatRequiresToken(t *testing.T) {
	ts := testutil.NewMemoryTestServer(t)

	resp := testutil.PostJSON(t, ts.APIURL("/chatbot/chat"), map[string]string{"message": "hello"})
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
}

func TestChatHandler_ChatAuthenticated(t *testing.T) {
	ts := testutil.NewMemoryTestServer(t)
	user, _ := testutil.NewUserBuilder().Build(t, ts.Repos.User)
	token, _, err := ts.Tokens.Issue(user.ID)
	require.NoError(t, err)

	req := testutil.CreateAuthenticatedRequest(t, http.MethodPost, ts.APIURL("/chatbot/chat"), map[string]string{"message": "hi"}, token)
	resp := testutil.DoJSON(t, req)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var body chatBody
	testutil.AssertJSONResponse(t, resp, &body)
	assert.True(t, strings.HasPrefix(body.SessionID, user.ID.String()+"_"), body.SessionID)
}

func TestChatHandler_Errors(t *testing.T) {
	tests := []struct {
		name           string
		modelErr       error
		request        map[string]string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "missing message",
			request:        map[string]string{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "message is required",
		},
		{
			name:           "invalid api key",
			modelErr:       fmt.Errorf("%w: API key not valid", domain.ErrInvalidAPIKey),
			request:        map[string]string{"message": "hi"},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid Gemini API key",
		},
		{
			name:           "upstream failure",
			modelErr:       fmt.Errorf("%w: status 503", domain.ErrUpstreamFailure),
			request:        map[string]string{"message": "hi"},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Failed to generate response from chatbot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := testutil.NewMemoryTestServer(t)
			if tt.modelErr != nil {
				ts.Model.SetError(tt.modelErr)
			}

			resp := testutil.PostJSON(t, ts.APIURL("/chatbot/chat-public"), tt.request)
			defer resp.Body.Close()
			testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedError)
		})
	}
}

func TestChatHandler_Sessions(t *testing.T) {
	ts := testutil.NewMemoryTestServer(t)

	resp := testutil.PostJSON(t, ts.APIURL("/chatbot/chat-public"), map[string]string{"message": "hi", "sessionId": "abc"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listResp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/chatbot/sessions"), nil, ""))
	defer listResp.Body.Close()
	var list struct {
		ActiveSessions int      `json:"activeSessions"`
		Sessions       []string `json:"sessions"`
	}
	testutil.AssertJSONResponse(t, listResp, &list)
	assert.Equal(t, 1, list.ActiveSessions)
	assert.Equal(t, []string{"abc"}, list.Sessions)

	delResp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, ts.APIURL("/chatbot/session/abc"), nil, ""))
	defer delResp.Body.Close()
	testutil.AssertStatusCode(t, delResp, http.StatusOK)
	var del map[string]any
	testutil.AssertJSONResponse(t, delResp, &del)
	assert.Equal(t, "Session cleared", del["message"])

	missing := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, ts.APIURL("/chatbot/session/abc"), nil, ""))
	defer missing.Body.Close()
	testutil.AssertErrorResponse(t, missing, http.StatusNotFound, "Session not found")
}

type sessionList struct {
	ActiveSessions int      `json:"activeSessions"`
	Sessions       []string `json:"sessions"`
}

func TestChatHandler_SessionOwnership(t *testing.T) {
	ts := testutil.NewMemoryTestServer(t)
	user, _ := testutil.NewUserBuilder().Build(t, ts.Repos.User)
	token, _, err := ts.Tokens.Issue(user.ID)
	require.NoError(t, err)

	chatResp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodPost, ts.APIURL("/chatbot/chat"), map[string]string{"message": "private"}, token))
	defer chatResp.Body.Close()
	var owned chatBody
	testutil.AssertJSONResponse(t, chatResp, &owned)
	sessionURL := ts.APIURL("/chatbot/session/" + owned.SessionID)

	t.Run("public chat cannot continue it", func(t *testing.T) {
		resp := testutil.PostJSON(t, ts.APIURL("/chatbot/chat-public"), map[string]string{"message": "hi", "sessionId": owned.SessionID})
		defer resp.Body.Close()
		testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "Session not found")
	})

	t.Run("public list hides it", func(t *testing.T) {
		resp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/chatbot/sessions"), nil, ""))
		defer resp.Body.Close()
		var list sessionList
		testutil.AssertJSONResponse(t, resp, &list)
		assert.NotContains(t, list.Sessions, owned.SessionID)
	})

	t.Run("public delete is refused", func(t *testing.T) {
		resp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, sessionURL, nil, ""))
		defer resp.Body.Close()
		testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "Session not found")
	})

	t.Run("forged token is rejected", func(t *testing.T) {
		resp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, sessionURL, nil, "forged"))
		defer resp.Body.Close()
		testutil.AssertStatusCode(t, resp, http.StatusForbidden)
	})

	t.Run("owner lists and deletes it", func(t *testing.T) {
		listResp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/chatbot/sessions"), nil, token))
		defer listResp.Body.Close()
		var list sessionList
		testutil.AssertJSONResponse(t, listResp, &list)
		assert.Equal(t, []string{owned.SessionID}, list.Sessions)

		delResp := testutil.DoJSON(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, sessionURL, nil, token))
		defer delResp.Body.Close()
		testutil.AssertStatusCode(t, delResp, http.StatusOK)
	})

	// The refused public call never reached the model.
	assert.Len(t, ts.Model.Calls(), 1)
}
