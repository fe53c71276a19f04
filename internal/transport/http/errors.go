package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trivia-session-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden, "not_participant"
	case errors.Is(err, domain.ErrInvalidAnswerIndex):
		return http.StatusBadRequest, "invalid_answer_index"
	case errors.Is(err, domain.ErrNotEnoughParticipants):
		return http.StatusBadRequest, "not_enough_participants"
	case errors.Is(err, domain.ErrPhaseMismatch):
		return http.StatusConflict, "phase_mismatch"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict, "already_answered"
	case errors.Is(err, domain.ErrTimeExpired):
		return http.StatusConflict, "time_expired"
	case errors.Is(err, domain.ErrEmptyQuestionBank):
		return http.StatusServiceUnavailable, "empty_question_bank"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusInternalServerError, "question_not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("http error: %v", err)
		if code == "internal" {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: "bad_request"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http write error: %v", err)
	}
}
