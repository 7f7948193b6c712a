package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dom/healthguide/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req generateRequest)) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL+"/", "test-model", "test-key")
}

func reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
}

func TestClient_Generate(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, req generateRequest) {
		if !assert.Len(t, req.Contents, 1) || !assert.Len(t, req.Contents[0].Parts, 2) {
			return
		}
		assert.Equal(t, "classify", req.Contents[0].Parts[0].Text)
		assert.Equal(t, "image/jpeg", req.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, "AQID", req.Contents[0].Parts[1].InlineData.Data)
		reply(w, "  {\"class\":\"clean\"}  ")
	})

	text, err := c.Generate(context.Background(), Text("classify"), Image("image/jpeg", []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, `{"class":"clean"}`, text)
}

func TestClient_ChatSendsHistory(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, req generateRequest) {
		if !assert.Len(t, req.Contents, 3) || !assert.NotNil(t, req.GenerationConfig) {
			return
		}
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "first", req.Contents[0].Parts[0].Text)
		assert.Equal(t, "model", req.Contents[1].Role)
		assert.Equal(t, "first reply", req.Contents[1].Parts[0].Text)
		assert.Equal(t, "second", req.Contents[2].Parts[0].Text)
		assert.Equal(t, 1000, req.GenerationConfig.MaxOutputTokens)
		reply(w, "second reply")
	})

	history := []domain.Turn{{UserMessage: "first", Reply: "first reply"}}
	text, err := c.Chat(context.Background(), history, "second")
	require.NoError(t, err)
	assert.Equal(t, "second reply", text)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "invalid key",
			status:  http.StatusBadRequest,
			body:    `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`,
			wantErr: domain.ErrInvalidAPIKey,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":{"code":500,"message":"internal"}}`,
			wantErr: domain.ErrUpstreamFailure,
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{"candidates":[]}`,
			wantErr: domain.ErrUpstreamFailure,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: domain.ErrUpstreamFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, _ generateRequest) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Generate(context.Background(), Text("hi"))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	var out struct {
		Severity string `json:"severity"`
	}

	assert.True(t, ExtractJSON("Here you go:\n```json\n{\"severity\":\"urgent\"}\n```", &out))
	assert.Equal(t, "urgent", out.Severity)

	assert.False(t, ExtractJSON("no json here", &out))
	assert.False(t, ExtractJSON("{broken", &out))
}
