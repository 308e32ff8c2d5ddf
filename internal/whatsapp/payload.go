package whatsapp

import (
	"encoding/json"
	"strconv"

	"github.com/findhomeng/yard/internal/models"
)

// Webhook payload envelope as delivered by the Cloud API. Only the fields the
// bot reads are declared; everything else is ignored on decode.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Messages         []WebhookMessage  `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

type WebhookMessage struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *WebhookText `json:"text"`
}

type WebhookText struct {
	Body string `json:"body"`
}

// ExtractMessage pulls the first inbound text message out of a webhook
// payload. Status-only deliveries and non-text message types return
// (nil, nil): they are acknowledged but not processed.
func ExtractMessage(payload *WebhookPayload) (*models.IncomingMessage, error) {
	if payload == nil || len(payload.Entry) == 0 {
		return nil, nil
	}
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				ts, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
				m := &models.IncomingMessage{
					ID:   msg.ID,
					From: msg.From,
					Text: msg.Text.Body,
					Time: ts,
				}
				if err := m.Validate(); err != nil {
					return nil, err
				}
				return m, nil
			}
		}
	}
	return nil, nil
}
