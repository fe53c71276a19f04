package domain

import "time"

// AnswerCount is the fixed number of answers every question carries.
const AnswerCount = 4

// Phase is the current stage of a session.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseQuestion Phase = "question"
	PhaseSummary  Phase = "summary"
	PhaseFinished Phase = "finished"
)

// SessionStatus is the coarse lifecycle of a session.
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

// Question is an immutable multiple-choice question from the bank.
// Answers are kept in canonical (stored) order.
type Question struct {
	ID           int64               `json:"id" yaml:"id"`
	Text         string              `json:"text" yaml:"text"`
	Answers      [AnswerCount]string `json:"answers" yaml:"answers"`
	CorrectIndex int                 `json:"correctIndex" yaml:"correct"`
	Difficulty   string              `json:"difficulty" yaml:"difficulty"`
	Category     string              `json:"category" yaml:"category"`
}

// Participant is a user taking part in a session.
type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Session is one play-through.
type Session struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// HasParticipant reports whether userID takes part in the session.
func (s Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// SessionState is the phase machine row of a session.
type SessionState struct {
	SessionID            string    `json:"sessionId"`
	QuestionOrder        []int64   `json:"questionOrder"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	Phase                Phase     `json:"phase"`
	PhaseStartedAt       time.Time `json:"phaseStartedAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// CurrentQuestionID returns the question being played, or false when the
// index is out of range.
func (s SessionState) CurrentQuestionID() (int64, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.QuestionOrder) {
		return 0, false
	}
	return s.QuestionOrder[s.CurrentQuestionIndex], true
}

// Answer is the single recorded answer of a user to a question.
// AnswerIndex is in canonical order; nil marks a timeout.
type Answer struct {
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	QuestionID    int64     `json:"questionId"`
	AnswerIndex   *int      `json:"answerIndex"`
	IsCorrect     bool      `json:"isCorrect"`
	PointsAwarded int       `json:"pointsAwarded"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Score holds the accumulated points of a user, scaled by ten.
type Score struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Points    int    `json:"points"`
}

// LeaderboardEntry is one ranked row of a session leaderboard.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

// GlobalLeaderboardEntry aggregates scores across finished sessions.
type GlobalLeaderboardEntry struct {
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	TotalScore     int    `json:"totalScore"`
	SessionsPlayed int    `json:"sessionsPlayed"`
	Rank           int    `json:"rank"`
}

// SubmitResult summarizes the outcome of an accepted answer.
type SubmitResult struct {
	IsCorrect     bool `json:"isCorrect"`
	PointsAwarded int  `json:"pointsAwarded"`
}
