package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SessionStore persists sessions in Postgres. A session transaction holds a
// row lock on session_states, so transitions and submissions on one session
// are serialized while different sessions proceed in parallel.
type SessionStore struct {
	queries
	pool *pgxpool.Pool
}

var _ app.SessionStore = (*SessionStore)(nil)

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{queries: queries{q: pool}, pool: pool}
}

func (s *SessionStore) CreateSession(ctx context.Context, session domain.Session, state domain.SessionState) error {
	order, err := json.Marshal(state.QuestionOrder)
	if err != nil {
		return fmt.Errorf("encode question order: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO sessions (id, status, created_at) VALUES ($1, $2, $3)`,
		session.ID, string(session.Status), session.CreatedAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for i, p := range session.Participants {
		if _, err := tx.Exec(ctx, `INSERT INTO session_participants (session_id, user_id, display_name, position) VALUES ($1, $2, $3, $4)`,
			session.ID, p.UserID, p.DisplayName, i); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO scores (session_id, user_id, points) VALUES ($1, $2, 0)`,
			session.ID, p.UserID); err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO session_states (session_id, question_order, current_question_index, phase, phase_started_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4, $5, $6)`,
		session.ID, string(order), state.CurrentQuestionIndex, string(state.Phase), state.PhaseStartedAt, state.UpdatedAt); err != nil {
		return fmt.Errorf("insert state: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *SessionStore) WithSessionTx(ctx context.Context, sessionID string, fn func(tx app.SessionTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT session_id FROM session_states WHERE session_id = $1 FOR UPDATE`, sessionID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("lock session: %w", err)
	}

	if err := fn(&pgTx{queries: queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SessionStore) ListSessions(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.Session, error) {
	sql := `SELECT id, status, created_at FROM sessions WHERE status = $1 ORDER BY created_at DESC, id`
	args := []interface{}{string(status)}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var (
		sessions []domain.Session
		ids      []string
	)
	for rows.Next() {
		var (
			sess domain.Session
			raw  string
		)
		if err := rows.Scan(&sess.ID, &raw, &sess.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Status = domain.SessionStatus(raw)
		sessions = append(sessions, sess)
		ids = append(ids, sess.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Session{}, nil
	}

	participants, err := s.participantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Participants = participants[sessions[i].ID]
	}
	return sessions, nil
}

func (s *SessionStore) participantsFor(ctx context.Context, ids []string) (map[string][]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `SELECT session_id, user_id, display_name FROM session_participants
		WHERE session_id = ANY($1) ORDER BY session_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]domain.Participant, len(ids))
	for rows.Next() {
		var (
			sessionID string
			p         domain.Participant
		)
		if err := rows.Scan(&sessionID, &p.UserID, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[sessionID] = append(out[sessionID], p)
	}
	return out, rows.Err()
}

// pgTx runs statements inside the locked session transaction.
type pgTx struct {
	queries
}

var _ app.SessionTx = (*pgTx)(nil)

func (t *pgTx) UpdateState(ctx context.Context, state domain.SessionState) error {
	order, err := json.Marshal(state.QuestionOrder)
	if err != nil {
		return fmt.Errorf("encode question order: %w", err)
	}
	tag, err := t.q.Exec(ctx, `UPDATE session_states
		SET question_order = $2::jsonb, current_question_index = $3, phase = $4, phase_started_at = $5, updated_at = $6
		WHERE session_id = $1`,
		state.SessionID, string(order), state.CurrentQuestionIndex, string(state.Phase), state.PhaseStartedAt, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (t *pgTx) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	tag, err := t.q.Exec(ctx, `INSERT INTO answers (session_id, user_id, question_id, answer_index, is_correct, points_awarded, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, user_id, question_id) DO NOTHING`,
		answer.SessionID, answer.UserID, answer.QuestionID, answer.AnswerIndex, answer.IsCorrect, answer.PointsAwarded, answer.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyAnswered
	}
	return nil
}

func (t *pgTx) IncrementScore(ctx context.Context, sessionID, userID string, points int) error {
	_, err := t.q.Exec(ctx, `INSERT INTO scores (session_id, user_id, points) VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id) DO UPDATE SET points = scores.points + EXCLUDED.points`,
		sessionID, userID, points)
	if err != nil {
		return fmt.Errorf("increment score: %w", err)
	}
	return nil
}

func (t *pgTx) SetSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	_, err := t.q.Exec(ctx, `UPDATE sessions SET status = $2 WHERE id = $1`, sessionID, string(status))
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	return nil
}

// queries implements app.SessionReader over either the pool or a transaction.
type queries struct {
	q querier
}

func (r queries) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var (
		session domain.Session
		status  string
	)
	err := r.q.QueryRow(ctx, `SELECT id, status, created_at FROM sessions WHERE id = $1`, sessionID).
		Scan(&session.ID, &status, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.Status = domain.SessionStatus(status)

	rows, err := r.q.Query(ctx, `SELECT user_id, display_name FROM session_participants WHERE session_id = $1 ORDER BY position`, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID, &p.DisplayName); err != nil {
			return domain.Session{}, fmt.Errorf("scan participant: %w", err)
		}
		session.Participants = append(session.Participants, p)
	}
	return session, rows.Err()
}

func (r queries) GetState(ctx context.Context, sessionID string) (domain.SessionState, error) {
	var (
		state domain.SessionState
		order []byte
		phase string
	)
	err := r.q.QueryRow(ctx, `SELECT session_id, question_order, current_question_index, phase, phase_started_at, updated_at
		FROM session_states WHERE session_id = $1`, sessionID).
		Scan(&state.SessionID, &order, &state.CurrentQuestionIndex, &phase, &state.PhaseStartedAt, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SessionState{}, domain.ErrSessionNotFound
		}
		return domain.SessionState{}, fmt.Errorf("get state: %w", err)
	}
	if err := json.Unmarshal(order, &state.QuestionOrder); err != nil {
		return domain.SessionState{}, fmt.Errorf("decode question order: %w", err)
	}
	state.Phase = domain.Phase(phase)
	return state, nil
}

const answerColumns = `session_id, user_id, question_id, answer_index, is_correct, points_awarded, submitted_at`

func (r queries) FindAnswer(ctx context.Context, sessionID, userID string, questionID int64) (domain.Answer, bool, error) {
	rows, err := r.q.Query(ctx, `SELECT `+answerColumns+` FROM answers
		WHERE session_id = $1 AND user_id = $2 AND question_id = $3`, sessionID, userID, questionID)
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("find answer: %w", err)
	}
	answers, err := scanAnswers(rows)
	if err != nil {
		return domain.Answer{}, false, err
	}
	if len(answers) == 0 {
		return domain.Answer{}, false, nil
	}
	return answers[0], true, nil
}

func (r queries) ListAnswers(ctx context.Context, sessionID string, questionID int64) ([]domain.Answer, error) {
	rows, err := r.q.Query(ctx, `SELECT `+answerColumns+` FROM answers
		WHERE session_id = $1 AND question_id = $2 ORDER BY submitted_at, user_id`, sessionID, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return scanAnswers(rows)
}

func (r queries) ListSessionAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	rows, err := r.q.Query(ctx, `SELECT `+answerColumns+` FROM answers
		WHERE session_id = $1 ORDER BY submitted_at, user_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session answers: %w", err)
	}
	return scanAnswers(rows)
}

func (r queries) ListScores(ctx context.Context, sessionID string) ([]domain.Score, error) {
	rows, err := r.q.Query(ctx, `SELECT s.session_id, s.user_id, s.points FROM scores s
		JOIN session_participants p ON p.session_id = s.session_id AND p.user_id = s.user_id
		WHERE s.session_id = $1 ORDER BY p.position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()
	scores := make([]domain.Score, 0)
	for rows.Next() {
		var sc domain.Score
		if err := rows.Scan(&sc.SessionID, &sc.UserID, &sc.Points); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

func scanAnswers(rows pgx.Rows) ([]domain.Answer, error) {
	defer rows.Close()
	answers := make([]domain.Answer, 0)
	for rows.Next() {
		var (
			a           domain.Answer
			answerIndex *int
			submittedAt time.Time
		)
		if err := rows.Scan(&a.SessionID, &a.UserID, &a.QuestionID, &answerIndex, &a.IsCorrect, &a.PointsAwarded, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.AnswerIndex = answerIndex
		a.SubmittedAt = submittedAt
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
