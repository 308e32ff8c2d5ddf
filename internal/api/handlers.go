// Package api provides HTTP handlers for Yard endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/findhomeng/yard/internal/flow"
	"github.com/findhomeng/yard/internal/models"
	"github.com/findhomeng/yard/internal/whatsapp"
)

// webhookHandler dispatches the two webhook verbs: GET is the Cloud API
// verification handshake, POST is message delivery.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyHandler(w, r)
	case http.MethodPost:
		s.deliveryHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyHandler answers the hub.challenge handshake. A matching verify token
// echoes the challenge back as plain text; anything else is 403.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == s.verifyToken {
		slog.Info("Server.verifyHandler: webhook verified")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil {
			slog.Error("Server.verifyHandler: failed to write challenge", "error", err)
		}
		return
	}
	slog.Warn("Server.verifyHandler: verification rejected", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// deliveryHandler processes one webhook delivery. Parse failures are 400;
// everything after a successful parse is acknowledged with 200 regardless of
// processing outcome.
func (s *Server) deliveryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var payload whatsapp.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.deliveryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	msg, err := whatsapp.ExtractMessage(&payload)
	if err != nil {
		slog.Warn("Server.deliveryHandler: payload missing required fields", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Ignored("Malformed message ignored"))
		return
	}
	if msg == nil {
		writeJSONResponse(w, http.StatusOK, models.Ignored("No message"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultHandlerTimeout)
	defer cancel()

	outcome, err := s.engine.HandleMessage(ctx, *msg)
	if err != nil {
		slog.Error("Server.deliveryHandler: message processing failed", "error", err, "message_id", msg.ID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Processed with errors", nil))
		return
	}
	if outcome == flow.OutcomeDuplicate {
		writeJSONResponse(w, http.StatusOK, models.Ignored("Duplicate ignored"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
