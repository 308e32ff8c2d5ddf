// Package testutil provides common test utilities and helpers for Yard tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/findhomeng/yard/internal/api"
	"github.com/findhomeng/yard/internal/flow"
	"github.com/findhomeng/yard/internal/store"
	"github.com/findhomeng/yard/internal/whatsapp"
)

// TestVerifyToken is the webhook verification token test servers are built with.
const TestVerifyToken = "test-verify-token"

// NewTestServer creates a test API server backed by an in-memory store and a
// recording mock sender. The returned store and sender allow assertions on
// persisted state and outbound traffic.
func NewTestServer(t *testing.T) (*api.Server, *store.InMemoryStore, *whatsapp.MockClient) {
	t.Helper()
	st := store.NewInMemoryStore()
	sender := whatsapp.NewMockClient()
	engine, err := flow.NewEngine(flow.DefaultGraph(), flow.Dependencies{
		Sessions:     st,
		Dedup:        st,
		Listings:     st,
		Searches:     st,
		Appointments: st,
		Sender:       sender,
	})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	server, err := api.NewServer(engine, api.WithVerifyToken(TestVerifyToken))
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	return server, st, sender
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// WebhookPayload builds a minimal Cloud API delivery payload wrapping one
// inbound text message.
func WebhookPayload(messageID, from, text string) map[string]interface{} {
	return map[string]interface{}{
		"object": "whatsapp_business_account",
		"entry": []map[string]interface{}{{
			"id": "entry-1",
			"changes": []map[string]interface{}{{
				"field": "messages",
				"value": map[string]interface{}{
					"messaging_product": "whatsapp",
					"messages": []map[string]interface{}{{
						"id":        messageID,
						"from":      from,
						"timestamp": "1724900000",
						"type":      "text",
						"text":      map[string]string{"body": text},
					}},
				},
			}},
		}},
	}
}
