package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	graphURL       = "https://graph.facebook.com/v21.0"
	requestTimeout = 15 * time.Second
)

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp: status %d", e.StatusCode)
	}
	return fmt.Sprintf("whatsapp: status %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// Client sends messages through the Cloud API on behalf of one phone number.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	http          *http.Client
}

func NewClient(phoneNumberID, accessToken string) *Client {
	return &Client{
		baseURL:       graphURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		http:          &http.Client{Timeout: requestTimeout},
	}
}

// SendText delivers one plain text message to the user with phone number to.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.post(ctx, SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &SendText{Body: body},
	})
}

// MarkRead marks an inbound message as read and shows the typing indicator
// until the next reply is sent or 25 seconds pass.
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/typing-indicators
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.post(ctx, ReadReceipt{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
		TypingIndicator:  &TypingIndicator{Type: "text"},
	})
}

func (c *Client) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: encoding request: %w", err)
	}

	endpoint := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var env graphErrorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
