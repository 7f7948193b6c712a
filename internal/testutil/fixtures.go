package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/dom/healthguide/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email     string
	password  string
	name      string
	challenge *domain.OTPChallenge
	profile   bool
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		email:    fmt.Sprintf("user_%s@example.com", uuid.New().String()[:8]),
		password: "testpassword123",
		name:     "Test User",
	}
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithChallenge stores a pending challenge on the user.
func (b *UserBuilder) WithChallenge(code string, expiresAt time.Time) *UserBuilder {
	b.challenge = &domain.OTPChallenge{Code: code, ExpiresAt: expiresAt}
	return b
}

// WithProfile marks the signup as completed.
func (b *UserBuilder) WithProfile(name string) *UserBuilder {
	b.name = name
	b.profile = true
	return b
}

// Build stores the user and returns it with the raw password
func (b *UserBuilder) Build(t *testing.T, repo repository.UserRepository) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), MinBcryptCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        b.email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if b.challenge != nil {
		user.SetChallenge(*b.challenge)
	}
	if b.profile {
		user.ApplyProfile(domain.Profile{Name: b.name}, now)
	}

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// SignupResponse matches the API signup response
type SignupResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

// BuildAndAuthenticate runs send-otp, verify-otp and signup over HTTP and
// returns the new user id and its token.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (uuid.UUID, string) {
	t.Helper()

	resp := PostJSON(t, ts.APIURL("/auth/send-otp"), map[string]any{
		"email": b.email, "password": b.password, "signup": true,
	})
	requireOK(t, resp, "send-otp")

	resp = PostJSON(t, ts.APIURL("/auth/verify-otp"), map[string]any{
		"email": b.email, "password": b.password, "otp": ts.Sender.LastCode(b.email),
	})
	requireOK(t, resp, "verify-otp")

	resp = PostJSON(t, ts.APIURL("/auth/signup"), map[string]any{
		"email": b.email, "password": b.password, "name": b.name,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup: unexpected status code: %d", resp.StatusCode)
	}

	var out SignupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}

	id, err := uuid.Parse(out.User.ID)
	if err != nil {
		t.Fatalf("signup returned bad user id %q: %v", out.User.ID, err)
	}
	return id, out.Token
}

func requireOK(t *testing.T, resp *http.Response, step string) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: unexpected status code: %d", step, resp.StatusCode)
	}
}

// PostJSON sends body as JSON and returns the response
func PostJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	return DoJSON(t, CreateAuthenticatedRequest(t, http.MethodPost, url, body, ""))
}

// CreateAuthenticatedRequest builds a JSON request, adding the bearer token when set
func CreateAuthenticatedRequest(t *testing.T, method, url string, body any, token string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// DoJSON executes req with the default client
func DoJSON(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", req.Method, req.URL, err)
	}
	return resp
}
