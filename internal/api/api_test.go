package api_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/findhomeng/yard/internal/testutil"
)

func TestWebhookVerification(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", testutil.TestVerifyToken)
	q.Set("hub.challenge", "challenge-123")

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/webhook?"+q.Encode(), nil)
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "verification")
	if rr.Body.String() != "challenge-123" {
		t.Errorf("expected challenge echoed, got %q", rr.Body.String())
	}
}

func TestWebhookVerificationRejectsBadToken(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "wrong")
	q.Set("hub.challenge", "challenge-123")

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodGet, "/webhook?"+q.Encode(), nil)
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "bad token")
}

func TestWebhookDelivery(t *testing.T) {
	server, st, sender := testutil.NewTestServer(t)
	handler := server.Handler()

	payload := testutil.WebhookPayload("wamid.1", "2348012345678", "hi")
	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", payload)
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delivery")
	testutil.AssertJSONResponse(t, rr, "ok")

	if sent := sender.Sent(); len(sent) != 1 || sent[0].To != "2348012345678" {
		t.Errorf("expected one reply to the sender, got %+v", sent)
	}
	if sess, _ := st.GetSession(req.Context(), "2348012345678"); sess == nil {
		t.Error("expected a session created for the greeting")
	}
}

func TestWebhookDeliveryDuplicate(t *testing.T) {
	server, _, sender := testutil.NewTestServer(t)
	handler := server.Handler()

	payload := testutil.WebhookPayload("wamid.dup", "2348012345678", "hi")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", payload))
	testutil.AssertJSONResponse(t, rr, "ok")
	before := len(sender.Sent())

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", payload))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "redelivery")
	testutil.AssertJSONResponse(t, rr, "ignored")

	if len(sender.Sent()) != before {
		t.Error("redelivery must not send messages")
	}
}

func TestWebhookDeliveryStatusOnly(t *testing.T) {
	server, _, sender := testutil.NewTestServer(t)
	handler := server.Handler()

	payload := map[string]interface{}{
		"object": "whatsapp_business_account",
		"entry": []map[string]interface{}{{
			"id": "entry-1",
			"changes": []map[string]interface{}{{
				"field": "messages",
				"value": map[string]interface{}{
					"messaging_product": "whatsapp",
					"statuses":          []map[string]interface{}{{"id": "wamid.1", "status": "read"}},
				},
			}},
		}},
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", payload))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "status delivery")
	testutil.AssertJSONResponse(t, rr, "ignored")
	if len(sender.Sent()) != 0 {
		t.Error("status deliveries must not trigger replies")
	}
}

func TestWebhookDeliveryInvalidJSON(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	req, _ := http.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodDelete, "/webhook", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "method")
}

func TestHealth(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	testutil.AssertJSONResponse(t, rr, "ok")
}
