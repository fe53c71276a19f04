package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
// Transactions on one session are serialized by a per-session mutex and
// work on a private copy that replaces the committed data only on success.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	txMu sync.Mutex

	mu   sync.RWMutex
	data *sessionData
}

type answerKey struct {
	userID     string
	questionID int64
}

type sessionData struct {
	session domain.Session
	state   domain.SessionState
	answers []domain.Answer
	index   map[answerKey]int
	scores  map[string]int
}

var _ app.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, session domain.Session, state domain.SessionState) error {
	data := &sessionData{
		session: cloneSession(session),
		state:   cloneState(state),
		index:   make(map[answerKey]int),
		scores:  make(map[string]int, len(session.Participants)),
	}
	for _, p := range session.Participants {
		data.scores[p.UserID] = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &sessionEntry{data: data}
	return nil
}

func (s *SessionStore) WithSessionTx(ctx context.Context, sessionID string, fn func(tx app.SessionTx) error) error {
	entry, ok := s.entry(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	entry.txMu.Lock()
	defer entry.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	entry.mu.RLock()
	working := entry.data.clone()
	entry.mu.RUnlock()

	if err := fn(&memoryTx{data: working}); err != nil {
		return err
	}

	entry.mu.Lock()
	entry.data = working
	entry.mu.Unlock()
	return nil
}

func (s *SessionStore) ListSessions(_ context.Context, status domain.SessionStatus, limit int) ([]domain.Session, error) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]domain.Session, 0)
	for _, e := range entries {
		e.mu.RLock()
		if e.data.session.Status == status {
			out = append(out, cloneSession(e.data.session))
		}
		e.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var out domain.Session
	err := s.read(sessionID, func(d *sessionData) error {
		var err error
		out, err = d.getSession(sessionID)
		return err
	})
	return out, err
}

func (s *SessionStore) GetState(ctx context.Context, sessionID string) (domain.SessionState, error) {
	var out domain.SessionState
	err := s.read(sessionID, func(d *sessionData) error {
		out = cloneState(d.state)
		return nil
	})
	return out, err
}

func (s *SessionStore) FindAnswer(ctx context.Context, sessionID, userID string, questionID int64) (domain.Answer, bool, error) {
	var (
		out   domain.Answer
		found bool
	)
	err := s.read(sessionID, func(d *sessionData) error {
		out, found = d.findAnswer(userID, questionID)
		return nil
	})
	return out, found, err
}

func (s *SessionStore) ListAnswers(ctx context.Context, sessionID string, questionID int64) ([]domain.Answer, error) {
	var out []domain.Answer
	err := s.read(sessionID, func(d *sessionData) error {
		out = d.listAnswers(questionID)
		return nil
	})
	return out, err
}

func (s *SessionStore) ListSessionAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	var out []domain.Answer
	err := s.read(sessionID, func(d *sessionData) error {
		out = append([]domain.Answer(nil), d.answers...)
		return nil
	})
	return out, err
}

func (s *SessionStore) ListScores(ctx context.Context, sessionID string) ([]domain.Score, error) {
	var out []domain.Score
	err := s.read(sessionID, func(d *sessionData) error {
		out = d.listScores()
		return nil
	})
	return out, err
}

func (s *SessionStore) entry(sessionID string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	return e, ok
}

func (s *SessionStore) read(sessionID string, fn func(d *sessionData) error) error {
	entry, ok := s.entry(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return fn(entry.data)
}

// memoryTx operates on the working copy of one session.
type memoryTx struct {
	data *sessionData
}

func (t *memoryTx) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	return t.data.getSession(sessionID)
}

func (t *memoryTx) GetState(_ context.Context, sessionID string) (domain.SessionState, error) {
	if sessionID != t.data.session.ID {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return cloneState(t.data.state), nil
}

func (t *memoryTx) FindAnswer(_ context.Context, _ string, userID string, questionID int64) (domain.Answer, bool, error) {
	a, ok := t.data.findAnswer(userID, questionID)
	return a, ok, nil
}

func (t *memoryTx) ListAnswers(_ context.Context, _ string, questionID int64) ([]domain.Answer, error) {
	return t.data.listAnswers(questionID), nil
}

func (t *memoryTx) ListSessionAnswers(_ context.Context, _ string) ([]domain.Answer, error) {
	return append([]domain.Answer(nil), t.data.answers...), nil
}

func (t *memoryTx) ListScores(_ context.Context, _ string) ([]domain.Score, error) {
	return t.data.listScores(), nil
}

func (t *memoryTx) UpdateState(_ context.Context, state domain.SessionState) error {
	if state.SessionID != t.data.session.ID {
		return domain.ErrSessionNotFound
	}
	t.data.state = cloneState(state)
	return nil
}

func (t *memoryTx) InsertAnswer(_ context.Context, answer domain.Answer) error {
	key := answerKey{userID: answer.UserID, questionID: answer.QuestionID}
	if _, exists := t.data.index[key]; exists {
		return domain.ErrAlreadyAnswered
	}
	t.data.index[key] = len(t.data.answers)
	t.data.answers = append(t.data.answers, answer)
	return nil
}

func (t *memoryTx) IncrementScore(_ context.Context, _ string, userID string, points int) error {
	t.data.scores[userID] += points
	return nil
}

func (t *memoryTx) SetSessionStatus(_ context.Context, _ string, status domain.SessionStatus) error {
	t.data.session.Status = status
	return nil
}

func (d *sessionData) getSession(sessionID string) (domain.Session, error) {
	if sessionID != d.session.ID {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return cloneSession(d.session), nil
}

func (d *sessionData) findAnswer(userID string, questionID int64) (domain.Answer, bool) {
	i, ok := d.index[answerKey{userID: userID, questionID: questionID}]
	if !ok {
		return domain.Answer{}, false
	}
	return d.answers[i], true
}

func (d *sessionData) listAnswers(questionID int64) []domain.Answer {
	out := make([]domain.Answer, 0)
	for _, a := range d.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out
}

func (d *sessionData) listScores() []domain.Score {
	out := make([]domain.Score, 0, len(d.scores))
	for _, p := range d.session.Participants {
		out = append(out, domain.Score{SessionID: d.session.ID, UserID: p.UserID, Points: d.scores[p.UserID]})
	}
	return out
}

func (d *sessionData) clone() *sessionData {
	c := &sessionData{
		session: cloneSession(d.session),
		state:   cloneState(d.state),
		answers: append([]domain.Answer(nil), d.answers...),
		index:   make(map[answerKey]int, len(d.index)),
		scores:  make(map[string]int, len(d.scores)),
	}
	for k, v := range d.index {
		c.index[k] = v
	}
	for k, v := range d.scores {
		c.scores[k] = v
	}
	return c
}

func cloneSession(s domain.Session) domain.Session {
	s.Participants = append([]domain.Participant(nil), s.Participants...)
	return s
}

func cloneState(s domain.SessionState) domain.SessionState {
	s.QuestionOrder = append([]int64(nil), s.QuestionOrder...)
	return s
}
