package app

import (
	"context"

	"trivia-session-service/internal/domain"
)

// SessionReader is the read side of session storage. It is available both
// inside and outside a session transaction.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetState(ctx context.Context, sessionID string) (domain.SessionState, error)
	// FindAnswer reports the recorded answer of a user to a question, if any.
	FindAnswer(ctx context.Context, sessionID, userID string, questionID int64) (domain.Answer, bool, error)
	// ListAnswers returns every answer recorded for one question.
	ListAnswers(ctx context.Context, sessionID string, questionID int64) ([]domain.Answer, error)
	ListSessionAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error)
	ListScores(ctx context.Context, sessionID string) ([]domain.Score, error)
}

// SessionTx is a transaction scoped to a single session. Writes become
// visible to other callers only when the enclosing WithSessionTx returns nil.
type SessionTx interface {
	SessionReader
	UpdateState(ctx context.Context, state domain.SessionState) error
	// InsertAnswer fails with domain.ErrAlreadyAnswered when the
	// (session, user, question) key already exists.
	InsertAnswer(ctx context.Context, answer domain.Answer) error
	// IncrementScore adds points atomically at the storage layer.
	IncrementScore(ctx context.Context, sessionID, userID string, points int) error
	SetSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error
}

// SessionStore abstracts how sessions are persisted (in-memory, Postgres, Redis).
type SessionStore interface {
	SessionReader
	// CreateSession stores the session, its initial state and a zero score
	// for every participant.
	CreateSession(ctx context.Context, session domain.Session, state domain.SessionState) error
	// WithSessionTx runs fn serialized against every other transaction on
	// the same session. Returning an error discards all writes made by fn.
	WithSessionTx(ctx context.Context, sessionID string, fn func(tx SessionTx) error) error
	// ListSessions returns sessions with the given status, newest first.
	ListSessions(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.Session, error)
}

// QuestionBank is the read-only source of questions.
type QuestionBank interface {
	ListQuestionIDs(ctx context.Context) ([]int64, error)
	// GetQuestions returns the questions found for ids, keyed by ID.
	GetQuestions(ctx context.Context, ids []int64) (map[int64]domain.Question, error)
}
