package whatsapp

import (
	"encoding/json"
	"testing"
)

const textDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [{
          "id": "wamid.abc",
          "from": "2348012345678",
          "timestamp": "1724900000",
          "type": "text",
          "text": {"body": "hi"}
        }]
      }
    }]
  }]
}`

const statusDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "statuses": [{"id": "wamid.abc", "status": "delivered"}]
      }
    }]
  }]
}`

const imageDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [{
          "id": "wamid.img",
          "from": "2348012345678",
          "timestamp": "1724900000",
          "type": "image"
        }]
      }
    }]
  }]
}`

func decodePayload(t *testing.T, raw string) *WebhookPayload {
	t.Helper()
	var p WebhookPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	return &p
}

func TestExtractMessageText(t *testing.T) {
	msg, err := ExtractMessage(decodePayload(t, textDelivery))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.ID != "wamid.abc" || msg.From != "2348012345678" || msg.Text != "hi" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Time != 1724900000 {
		t.Errorf("timestamp not parsed: %d", msg.Time)
	}
}

func TestExtractMessageIgnoresStatuses(t *testing.T) {
	msg, err := ExtractMessage(decodePayload(t, statusDelivery))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != nil {
		t.Errorf("status delivery should yield no message, got %+v", msg)
	}
}

func TestExtractMessageIgnoresNonText(t *testing.T) {
	msg, err := ExtractMessage(decodePayload(t, imageDelivery))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != nil {
		t.Errorf("non-text delivery should yield no message, got %+v", msg)
	}
}

func TestExtractMessageEmptyPayload(t *testing.T) {
	if msg, err := ExtractMessage(nil); msg != nil || err != nil {
		t.Errorf("nil payload should be (nil, nil), got %+v %v", msg, err)
	}
	if msg, err := ExtractMessage(&WebhookPayload{}); msg != nil || err != nil {
		t.Errorf("empty payload should be (nil, nil), got %+v %v", msg, err)
	}
}
