package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// SSEHandler streams state views as Server-Sent Events.
type SSEHandler struct {
	service *app.SessionService
}

func NewSSEHandler(service *app.SessionService) *SSEHandler {
	return &SSEHandler{service: service}
}

type streamEvent struct {
	Type  string            `json:"type"`
	Data  *domain.StateView `json:"data,omitempty"`
	Error string            `json:"error,omitempty"`
	Code  string            `json:"code,omitempty"`
}

// ServeSSE handles GET /sessions/{id}/stream?userId=... Each event is a
// `data:` line holding {"type":"state","data":view}. The stream ends after
// the finished view, or after an {"type":"error"} event when polling fails.
func (h *SSEHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sessionID := r.PathValue("id")
	viewerID := r.URL.Query().Get("userId")

	sub, err := h.service.Subscribe(r.Context(), sessionID, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for view := range sub.Updates() {
		if err := writeEvent(w, streamEvent{Type: "state", Data: &view}); err != nil {
			log.Printf("sse write error: %v", err)
			return
		}
		flusher.Flush()
	}
	if err := sub.Err(); err != nil {
		_, code := statusFor(err)
		if err := writeEvent(w, streamEvent{Type: "error", Error: err.Error(), Code: code}); err != nil {
			log.Printf("sse write error: %v", err)
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, ev streamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
