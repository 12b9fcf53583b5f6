package ws

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Routes returns the HTTP mux for session management and connections.
func (h *Hub) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", h.handleCreateSession)
	mux.HandleFunc("POST /sessions/{id}/join", h.handleJoin)
	mux.HandleFunc("GET /duel", h.ServeConnect)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Hub) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sessionID := h.CreateSession()
	writeJSON(w, http.StatusCreated, map[string]any{"sessionId": sessionID})
}

func (h *Hub) handleJoin(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	token, participantID, err := h.IssueToken(sessionID, body.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":         token,
		"participantId": participantID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("failed writing response body")
	}
}
