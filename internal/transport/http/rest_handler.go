package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

const defaultListLimit = 20

// RESTHandler exposes the session use cases as JSON endpoints. The viewer is
// identified by the userId query parameter on reads and by the request body
// on answers; authentication happens in front of this service.
type RESTHandler struct {
	service *app.SessionService
}

func NewRESTHandler(service *app.SessionService) *RESTHandler {
	return &RESTHandler{service: service}
}

// Register mounts the session routes on mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", h.startSession)
	mux.HandleFunc("GET /sessions", h.history)
	mux.HandleFunc("GET /sessions/{id}/state", h.state)
	mux.HandleFunc("POST /sessions/{id}/answers", h.submitAnswer)
	mux.HandleFunc("GET /sessions/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /sessions/{id}/results", h.results)
	mux.HandleFunc("POST /sessions/{id}/finish", h.finish)
	mux.HandleFunc("GET /leaderboard", h.globalLeaderboard)
}

type startRequest struct {
	Participants []domain.Participant `json:"participants"`
}

type answerRequest struct {
	UserID      string `json:"userId"`
	AnswerIndex *int   `json:"answerIndex"`
}

func (h *RESTHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	session, err := h.service.StartSession(r.Context(), req.Participants)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *RESTHandler) history(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	sessions, err := h.service.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *RESTHandler) state(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ResolveState(r.Context(), r.PathValue("id"), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" || req.AnswerIndex == nil {
		writeBadRequest(w, "missing userId or answerIndex")
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), r.PathValue("id"), req.UserID, *req.AnswerIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RESTHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *RESTHandler) results(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.DetailedResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *RESTHandler) finish(w http.ResponseWriter, r *http.Request) {
	if err := h.service.FinishSession(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) globalLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := h.service.GlobalLeaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeBadRequest(w, "invalid limit")
		return 0, false
	}
	return limit, true
}
