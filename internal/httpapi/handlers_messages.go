package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/session"
)

// handleIngestMessage is the synchronous entry point for a source adapter
// to hand off one inbound message to the interaction assembler.
func (s *Server) handleIngestMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg session.Inbound
	if !decodeJSON(w, r, &msg) {
		return
	}
	messageID, interactionID, err := s.Session.Append(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.Embed != nil && msg.Content != "" {
		if mid, err := uuid.Parse(messageID); err == nil {
			if err := s.Embed.Enqueue(r.Context(), "message", mid, msg.Content); err != nil {
				slog.Warn("ingest: embedding enqueue failed", "message_id", messageID, "error", err)
			}
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"messageId": messageID, "interactionId": interactionID})
}
