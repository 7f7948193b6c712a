// Package genai is a small client for the generative language
// generateContent endpoint.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dom/healthguide/internal/domain"
)

const (
	defaultMaxOutputTokens = 1000
	defaultTemperature     = 0.7
)

// Part is one piece of a prompt: text or inline binary data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func Text(s string) Part {
	return Part{Text: s}
}

// Image encodes raw image bytes as an inline part.
func Image(mimeType string, data []byte) Part {
	return Part{InlineData: &InlineData{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

// Client calls generateContent for a single model.
type Client struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

func NewClient(baseURL, model, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Generate sends a single-turn prompt and returns the reply text.
func (c *Client) Generate(ctx context.Context, parts ...Part) (string, error) {
	return c.do(ctx, generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	})
}

// Chat sends message with the prior turns as context and returns the reply text.
func (c *Client) Chat(ctx context.Context, history []domain.Turn, message string) (string, error) {
	contents := make([]content, 0, 2*len(history)+1)
	for _, turn := range history {
		contents = append(contents,
			content{Role: "user", Parts: []Part{Text(turn.UserMessage)}},
			content{Role: "model", Parts: []Part{Text(turn.Reply)}},
		)
	}
	contents = append(contents, content{Role: "user", Parts: []Part{Text(message)}})

	return c.do(ctx, generateRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			MaxOutputTokens: defaultMaxOutputTokens,
			Temperature:     defaultTemperature,
		},
	})
}

func (c *Client) do(ctx context.Context, reqBody generateRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrUpstreamFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyError(resp.StatusCode, body)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrUpstreamFailure, err)
	}
	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", domain.ErrUpstreamFailure)
	}

	var sb strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func classifyError(status int, body []byte) error {
	var errResp errorResponse
	_ = json.Unmarshal(body, &errResp)

	for _, d := range errResp.Error.Details {
		if d.Reason == "API_KEY_INVALID" {
			return fmt.Errorf("%w: %s", domain.ErrInvalidAPIKey, errResp.Error.Message)
		}
	}
	if strings.Contains(string(body), "API_KEY_INVALID") {
		return fmt.Errorf("%w: %s", domain.ErrInvalidAPIKey, errResp.Error.Message)
	}

	msg := errResp.Error.Message
	if msg == "" {
		msg = string(body)
	}
	return fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamFailure, status, msg)
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON decodes the outermost {...} span of a model reply into v.
// It reports false when the reply holds no such span or it does not decode.
func ExtractJSON(reply string, v any) bool {
	match := jsonObject.FindString(reply)
	if match == "" {
		return false
	}
	return json.Unmarshal([]byte(match), v) == nil
}
