package whatsapp

import (
	"context"
	"sync"
)

// MockClient is an in-memory Sender for tests. It records every outbound
// message instead of calling the Cloud API.
type MockClient struct {
	mu   sync.Mutex
	sent []SentMessage
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient creates a recording mock sender.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages in send order.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reset clears the recorded messages.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
