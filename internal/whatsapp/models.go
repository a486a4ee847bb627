package whatsapp

// --- Incoming webhook payload ---
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks/components

type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value ChangeValue `json:"value"`
	Field string      `json:"field"`
}

// ChangeValue carries messages; delivery statuses arrive on the same hook
// and are ignored.
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Contact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type Message struct {
	From      string       `json:"from"`
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *TextContent `json:"text,omitempty"`
}

type TextContent struct {
	Body string `json:"body"`
}

// --- Outgoing send message ---
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/messages

type SendMessageRequest struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             *SendText `json:"text,omitempty"`
}

type SendText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// ReadReceipt marks a message as read, optionally with a typing indicator.
type ReadReceipt struct {
	MessagingProduct string           `json:"messaging_product"`
	Status           string           `json:"status"`
	MessageID        string           `json:"message_id"`
	TypingIndicator  *TypingIndicator `json:"typing_indicator,omitempty"`
}

type TypingIndicator struct {
	Type string `json:"type"`
}

// graphErrorEnvelope is the body of a failed Graph API call.
type graphErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}
