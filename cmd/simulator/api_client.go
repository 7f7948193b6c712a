package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

type ChatReply struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

type SignupResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

type ReportResult struct {
	Status string `json:"status"`
	Data   struct {
		Photo *string `json:"photo"`
	} `json:"data"`
	TextAnalysis struct {
		Severity   string `json:"severity"`
		Suggestion string `json:"suggestion"`
	} `json:"textAnalysis"`
	ImageAnalysis struct {
		Class string `json:"class"`
	} `json:"imageAnalysis"`
}

type Facilities struct {
	Message    string `json:"message"`
	Facilities []struct {
		Name     string `json:"name"`
		Address  string `json:"address"`
		Distance string `json:"distance"`
		Type     string `json:"type"`
	} `json:"facilities"`
}

// SendOTP asks the server to mail a code for email.
func (c *APIClient) SendOTP(email, password string, signup bool) error {
	body := map[string]any{"email": email, "password": password, "signup": signup}
	return c.postJSON("/auth/send-otp", body, "", nil)
}

// Signup verifies the code and completes the profile in one go.
func (c *APIClient) Signup(email, password, code, name string) (*SignupResult, error) {
	verify := map[string]string{"email": email, "password": password, "otp": code}
	if err := c.postJSON("/auth/verify-otp", verify, "", nil); err != nil {
		return nil, fmt.Errorf("verify-otp: %w", err)
	}

	var result SignupResult
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.postJSON("/auth/signup", body, "", &result); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return &result, nil
}

func (c *APIClient) Login(email, password, code string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password, "otp": code}
	if err := c.postJSON("/auth/login", body, "", &result); err != nil {
		return "", err
	}
	return result.Token, nil
}

// Chat sends one message. An empty token uses the public endpoint.
func (c *APIClient) Chat(token, sessionID, message string) (*ChatReply, error) {
	path := "/chatbot/chat-public"
	if token != "" {
		path = "/chatbot/chat"
	}

	var reply ChatReply
	body := map[string]string{"message": message, "sessionId": sessionID}
	if err := c.postJSON(path, body, token, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// DeleteSession clears a session; user-owned sessions need the owner's token.
func (c *APIClient) DeleteSession(token, sessionID string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/chatbot/session/"+sessionID, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, nil)
}

// SubmitReport posts a water report; photoPath may be empty.
func (c *APIClient) SubmitReport(issueType, description, location, photoPath string) (*ReportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("issueType", issueType)
	mw.WriteField("description", description)
	mw.WriteField("location", location)

	if photoPath != "" {
		f, err := os.Open(photoPath)
		if err != nil {
			return nil, fmt.Errorf("open photo: %w", err)
		}
		defer f.Close()

		part, err := mw.CreateFormFile("photo", filepath.Base(photoPath))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, fmt.Errorf("read photo: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/report", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result ReportResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) NearbyFacilities(location string) (*Facilities, error) {
	var result Facilities
	if err := c.postJSON("/nearby-facilities", map[string]string{"location": location}, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) postJSON(path string, body any, token string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(bodyBytes))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
