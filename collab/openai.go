package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stemtutor/tutorflow/types"
)

// OpenAIConfig configures the OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	// APIKey authenticates requests via a Bearer header.
	APIKey string

	// BaseURL is the API root, e.g. "https://api.openai.com".
	BaseURL string

	// Model is the model name to request.
	Model string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// HTTPClient overrides the default client. Tests use this.
	HTTPClient *http.Client
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// It maps transport failures and throttling to retryable errors and
// client-side rejections to permanent ones, so the retry layer above can
// tell them apart.
type OpenAIClient struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIClient builds the client. It satisfies ModelClient.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAIClient{cfg: cfg, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete returns the raw model output for a text prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, chatMessage{Role: "user", Content: prompt})
}

// CompleteWithImage sends the prompt with a base64-encoded image attached
// as a data URI content part.
func (c *OpenAIClient) CompleteWithImage(ctx context.Context, prompt, imageB64 string) (string, error) {
	return c.complete(ctx, chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:image/png;base64," + imageB64,
			}},
		},
	})
}

func (c *OpenAIClient) complete(ctx context.Context, msg chatMessage) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{msg},
	})
	if err != nil {
		return "", types.Permanent("failed to marshal completion request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", types.Permanent("failed to create completion request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", types.Transient("completion request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", mapHTTPStatus(resp.StatusCode, resp.Body)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.Transient("failed to decode completion response", err)
	}
	if len(out.Choices) == 0 {
		return "", types.Transient("completion response had no choices", nil)
	}

	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
}

// mapHTTPStatus classifies an error response: throttling and server-side
// failures are retryable, everything else is not.
func mapHTTPStatus(status int, body io.Reader) error {
	msg := readErrorMessage(body)
	wrapped := fmt.Errorf("completion failed: status=%d msg=%s", status, msg)
	if status == http.StatusTooManyRequests || status >= 500 {
		return types.Transient("model backend unavailable", wrapped)
	}
	return types.Permanent("model backend rejected request", wrapped)
}

// readErrorMessage extracts the error message from an OpenAI-style error
// body, falling back to the raw text.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "unknown"
	}
	var out chatResponse
	if json.Unmarshal(data, &out) == nil && out.Error != nil && out.Error.Message != "" {
		return out.Error.Message
	}
	return strings.TrimSpace(string(data))
}
