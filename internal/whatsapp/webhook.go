package whatsapp

import (
	"encoding/json"
	"net/http"

	"github.com/lojasmm/lmbot/internal/logger"
)

// Inbound is one text message received from a user.
type Inbound struct {
	From      string // sender phone number, used as the user id
	Name      string // profile name, may be empty
	MessageID string
	Text      string
}

// MessageHandler is called once per inbound text message. It must return
// quickly; Meta expects the webhook to answer within a few seconds.
type MessageHandler func(msg Inbound)

type WebhookHandler struct {
	verifyToken string
	onMessage   MessageHandler
}

func NewWebhookHandler(verifyToken string, onMessage MessageHandler) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		onMessage:   onMessage,
	}
}

// HandleVerify handles the GET webhook verification from Meta.
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/get-started#webhook-verification
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleIncoming decodes webhook notifications and forwards text messages.
// It always answers 200 so Meta does not redeliver payloads we cannot use.
func (h *WebhookHandler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn("webhook: failed to decode payload", "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					logger.Debug("webhook: skipping message", "type", msg.Type, "from", msg.From)
					continue
				}
				h.onMessage(Inbound{
					From:      msg.From,
					Name:      names[msg.From],
					MessageID: msg.ID,
					Text:      msg.Text.Body,
				})
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}
