// Package backend talks to a local OpenAI-compatible completion server
// such as LM Studio.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lojasmm/lmbot/internal/logger"
)

const (
	probeTimeout   = 5 * time.Second
	defaultTimeout = 120 * time.Second
	// cap on the bytes read from any response body
	maxBodyBytes = 8 << 20
)

// Message is one chat turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message *Message `json:"message"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

// Client is safe for concurrent use; it holds no per-request state.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
}

// NewClient returns a client for the server at baseURL (e.g. http://localhost:1234/v1).
// model may be empty to let the server pick its loaded model. timeout bounds
// each generation request.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		timeout: timeout,
		// deadlines come from the per-call contexts
		http: &http.Client{},
	}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Probe reports whether the server answers the models endpoint with 200.
// It never returns an error; unexpected failures are logged.
func (c *Client) Probe(ctx context.Context) bool {
	resp, err := c.getModels(ctx)
	if err != nil {
		if !isConnectionFailure(err) {
			logger.Error("backend: probe failed", "url", c.baseURL, "err", err)
		}
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the ids of the models the server exposes. Any failure,
// including a malformed body, yields an empty slice.
func (c *Client) ListModels(ctx context.Context) []string {
	resp, err := c.getModels(ctx)
	if err != nil {
		logger.Debug("backend: list models failed", "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("backend: list models bad status", "status", resp.StatusCode)
		return nil
	}

	var models modelsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&models); err != nil {
		logger.Error("backend: decoding models", "err", err)
		return nil
	}

	ids := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (c *Client) getModels(ctx context.Context) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Generate sends the whole history and returns the first completion's text.
// Errors are always *GenerationError.
func (c *Client) Generate(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", &GenerationError{Kind: KindMalformedResponse, Cause: fmt.Errorf("marshaling request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Kind: KindUnreachable, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", classifyTransport(err)
	}

	logger.Debug("backend: completion finished",
		"status", resp.StatusCode, "messages", len(messages), "elapsed", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode != http.StatusOK {
		return "", &GenerationError{
			Kind:       KindBadStatus,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(respBody),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &GenerationError{Kind: KindMalformedResponse, Cause: err}
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		return "", &GenerationError{Kind: KindMalformedResponse}
	}
	return chatResp.Choices[0].Message.Content, nil
}

// errorDetail extracts {"error": "..."} or {"error": {"message": "..."}}.
func errorDetail(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Error) == 0 || string(er.Error) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(er.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(er.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(er.Error)
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
