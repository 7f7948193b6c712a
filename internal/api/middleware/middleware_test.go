package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

type stubValidator struct {
	id  uuid.UUID
	err error
}

func (s stubValidator) ValidateToken(tok string) (uuid.UUID, error) {
	if tok == "" {
		return uuid.Nil, token.ErrTokenMissing
	}
	return s.id, s.err
}

func echoUserID(w http.ResponseWriter, r *http.Request) {
	id, ok := GetUserID(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write([]byte(id.String()))
}

func TestAuth(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
	}{
		{name: "valid token", header: "Bearer good", validator: stubValidator{id: userID}, wantStatus: http.StatusOK},
		{name: "missing header", header: "", validator: stubValidator{id: userID}, wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", validator: stubValidator{id: userID}, wantStatus: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer old", validator: stubValidator{err: token.ErrTokenExpired}, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer forged", validator: stubValidator{err: token.ErrTokenInvalid}, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(tt.validator, logger.Nop())(http.HandlerFunc(echoUserID))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, userID.String(), rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
		wantBody   string
	}{
		{name: "anonymous", header: "", validator: stubValidator{id: userID}, wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "valid token", header: "Bearer good", validator: stubValidator{id: userID}, wantStatus: http.StatusOK, wantBody: userID.String()},
		{name: "expired token", header: "Bearer old", validator: stubValidator{err: token.ErrTokenExpired}, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer forged", validator: stubValidator{err: token.ErrTokenInvalid}, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := OptionalAuth(tt.validator, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if id, ok := GetUserID(r.Context()); ok {
					w.Write([]byte(id.String()))
					return
				}
				w.Write([]byte("anonymous"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "1", rec2.Header().Get("Retry-After"))

	// Another client has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/chat", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec3 := httptest.NewRecorder()
	h.ServeHTTP(rec3, other)
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestCORS(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("no origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
