package domain

// StateView is the phase-tagged snapshot a viewer receives. Exactly one of
// Question or Summary is set for the question and summary phases.
type StateView struct {
	SessionID            string             `json:"sessionId"`
	Phase                Phase              `json:"phase"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	TotalQuestions       int                `json:"totalQuestions"`
	IsParticipant        bool               `json:"isParticipant"`
	RemainingMs          int64              `json:"remainingMs"`
	Leaderboard          []LeaderboardEntry `json:"leaderboard"`
	Question             *QuestionView      `json:"question,omitempty"`
	Summary              *SummaryView       `json:"summary,omitempty"`
}

// QuestionView is the question phase payload, answers in display order.
type QuestionView struct {
	ID                int64    `json:"id"`
	Text              string   `json:"text"`
	Answers           []string `json:"answers"`
	Difficulty        string   `json:"difficulty"`
	Category          string   `json:"category"`
	HasAnswered       bool     `json:"hasAnswered"`
	SelectedIndex     *int     `json:"selectedIndex"`
	AnsweredCount     int      `json:"answeredCount"`
	TotalParticipants int      `json:"totalParticipants"`
}

// SummaryView is the summary phase payload, indices in display order.
type SummaryView struct {
	QuestionText  string         `json:"questionText"`
	Answers       []string       `json:"answers"`
	CorrectIndex  int            `json:"correctIndex"`
	PlayerResults []PlayerResult `json:"playerResults"`
}

// PlayerResult is one participant's outcome for a question.
type PlayerResult struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	AnswerIndex   *int   `json:"answerIndex"`
	IsCorrect     bool   `json:"isCorrect"`
	PointsAwarded int    `json:"pointsAwarded"`
}

// QuestionResult is the per-question breakdown of a session's results.
type QuestionResult struct {
	Index         int            `json:"index"`
	QuestionID    int64          `json:"questionId"`
	QuestionText  string         `json:"questionText"`
	Answers       []string       `json:"answers"`
	CorrectIndex  int            `json:"correctIndex"`
	Difficulty    string         `json:"difficulty"`
	Category      string         `json:"category"`
	PlayerResults []PlayerResult `json:"playerResults"`
}

// Results is the detailed breakdown of a session.
type Results struct {
	SessionID   string             `json:"sessionId"`
	Phase       Phase              `json:"phase"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Questions   []QuestionResult   `json:"questions"`
}
